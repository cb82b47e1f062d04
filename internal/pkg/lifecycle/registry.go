package lifecycle

import (
	"fmt"
	"sort"
	"time"
)

// Deps wires the jobs to their stores.
type Deps struct {
	Credentials    CredentialStore
	AccessLogs     AccessLogSource
	BatchSize      int
	SecurityWindow time.Duration
	ReportSinks    []ReportSink
}

// Registry holds the jobs by name.
type Registry struct {
	jobs map[string]Job
}

// NewRegistry builds all lifecycle jobs.
func NewRegistry(d Deps) *Registry {
	r := &Registry{jobs: map[string]Job{}}
	for _, j := range []Job{
		NewQuotaResetJob(d.Credentials),
		NewRotationJob(d.Credentials, d.BatchSize),
		NewSecurityJob(d.Credentials, d.AccessLogs, d.SecurityWindow, d.BatchSize),
		NewWeeklyReportJob(d.Credentials, d.AccessLogs, d.ReportSinks...),
	} {
		r.jobs[j.Name()] = j
	}
	return r
}

// Get returns the job with the given name.
func (r *Registry) Get(name string) (Job, error) {
	j, ok := r.jobs[name]
	if !ok {
		return nil, fmt.Errorf("unknown job %q", name)
	}
	return j, nil
}

// Names returns the registered job names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
