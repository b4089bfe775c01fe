package scheduler

import (
	"sync"
	"time"
)

// Registry tracks every live Job explicitly, replacing the
// WeakHashMap-based aliveJobSet of original_source's
// BackgroundJobFactoryBase.java (spec §9): its own comment flags the weak
// map as a DoS vector ("you must not allow arbitrary strangers ... to cause
// creation of jobs using this factory. They could cause denial of service
// by making the HashMap grow very large"), and Go has no built-in
// weak-reference collection besides. Callers must Deregister a Job once it
// is no longer needed.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Register adds job to the registry, keyed by name. Re-registering the same
// name replaces the previous entry without terminating it; callers are
// responsible for terminating superseded jobs themselves.
func (r *Registry) Register(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.Name()] = job
}

// Deregister removes a job from the registry by name. It does not terminate
// the job; call Terminate first if that is required.
func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, name)
}

// Get returns the registered job by name, if any.
func (r *Registry) Get(name string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[name]
	return j, ok
}

// All returns every currently registered job, in no particular order.
func (r *Registry) All() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	return out
}

// TerminateAll terminates every registered job and waits up to timeout each
// for it to reach TERMINATED, mirroring
// BackgroundJobFactoryBase.terminateAll()/waitForTerminationOfAll. Returns
// the names of jobs that did not terminate within timeout.
func (r *Registry) TerminateAll(timeout time.Duration) (notTerminated []string) {
	for _, j := range r.All() {
		j.Terminate()
	}
	for _, j := range r.All() {
		if !j.WaitForTermination(timeout) {
			notTerminated = append(notTerminated, j.Name())
		}
	}
	return notTerminated
}
