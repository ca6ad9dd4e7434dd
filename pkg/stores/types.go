package stores

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a deployment does not exist.
var ErrNotFound = errors.New("not found")

// DeploymentStatus represents the outcome of a deploy.
type DeploymentStatus string

const (
	DeploymentStatusRunning   DeploymentStatus = "running"
	DeploymentStatusSucceeded DeploymentStatus = "succeeded"
	DeploymentStatusFailed    DeploymentStatus = "failed"
)

// Deployment is one deploy invocation.
type Deployment struct {
	ID         string           `json:"id" yaml:"id"`
	Target     string           `json:"target" yaml:"target"`
	Host       string           `json:"host" yaml:"host"`
	User       string           `json:"user" yaml:"user"`
	Method     string           `json:"method" yaml:"method"`
	Status     DeploymentStatus `json:"status" yaml:"status"`
	Stage      string           `json:"stage" yaml:"stage"`
	Error      *string          `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// DeployedFile is a file copied during a deployment.
type DeployedFile struct {
	ID           int64     `json:"id" yaml:"id"`
	DeploymentID string    `json:"deployment_id" yaml:"deployment_id"`
	Category     string    `json:"category" yaml:"category"`
	LocalPath    string    `json:"local_path" yaml:"local_path"`
	RemotePath   string    `json:"remote_path" yaml:"remote_path"`
	CopiedAt     time.Time `json:"copied_at" yaml:"copied_at"`
}
