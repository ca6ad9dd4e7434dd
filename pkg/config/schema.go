package config

// catalogSchema constrains a catalog document. Fields left out by the
// author pick up the defaults marked with '*'.
const catalogSchema = `
#Name: =~"^[_a-zA-Z][_a-zA-Z0-9]*$"

#EnvPair: {
	key:        #Name
	candidates: [string, ...string]
	action:     *"set" | "append"
}

#Link: {
	kind:  *"env" | "direct"
	value: string & !=""
}

#Profile: {
	env: [...#EnvPair]
	sources: [...string]
	links: [...#Link]
	linker?: string
	link_paths: [...string]
}

#Destinations: {
	executables:  string & !=""
	libraries:    string & !=""
	config_files: string & !=""
	user_files:   string & !=""
}

#Proxy: {
	host:      string & !=""
	port:      *22 | (int & >0 & <65536)
	user:      string & !=""
	auth:      *"agent" | "key" | "password"
	identity?: string
}

#Deploy: {
	host:             string & !=""
	port:             *22 | (int & >0 & <65536)
	user:             *"root" | string
	method:           *"ssh" | "none"
	auth:             *"key" | "password" | "agent"
	identity?:        string
	password?:        string
	known_hosts?:     string
	strict_host_key:  *false | bool
	destinations:     #Destinations
	remount?:         string
	commands: [...string]
	libraries: [...string]
	config_files: [...string]
	user_files: [...string]
	hook?:  string
	proxy?: #Proxy
}

#Catalog: {
	targets: [string]: #Profile
	default: #Profile
	deploy: [string]: #Deploy
	policies: [...string]
}
`
