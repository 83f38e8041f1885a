package sdk

import (
	"fmt"
	"time"
)

type NotaryStatus string

var (
	AcceptedStatus   NotaryStatus = "Accepted"
	InvalidStatus    NotaryStatus = "Invalid"
	RejectedStatus   NotaryStatus = "Rejected"
	InProgressStatus NotaryStatus = "In Progress"
)

// Version is the human facing version string together with the build number stamped
// into the project metadata.
type Version struct {
	Version string
	Build   int
}

func (v Version) String() string {
	return fmt.Sprintf("%s (%d)", v.Version, v.Build)
}

// Summary is the final report of a successful run.
type Summary struct {
	Version  Version
	Artifact string
	Size     int64
	SHA256   string
}

type Release struct {
	App         string    `json:"app"`
	Version     string    `json:"version"`
	Build       int       `json:"build"`
	Artifact    string    `json:"artifact"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	Submission  string    `json:"submission,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
