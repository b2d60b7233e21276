package mockbackend

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/entity"
)

type user struct {
	ID           int64
	Email        string
	PasswordHash []byte
}

type job struct {
	entity.Job
	Owner int64 // 0 for guest uploads
}

type store struct {
	mu       sync.Mutex
	users    map[string]user // by lowercased email
	jobs     map[entity.JobID]*job
	nextUser int64
	nextJob  int64
}

func newStore() *store {
	return &store{users: map[string]user{}, jobs: map[entity.JobID]*job{}}
}

func (s *store) userByEmail(email string) (user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	return u, ok
}

// createUser returns false when the email is taken.
func (s *store) createUser(email string, hash []byte) (user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	if _, exists := s.users[key]; exists {
		return user{}, false
	}
	s.nextUser++
	u := user{ID: s.nextUser, Email: email, PasswordHash: hash}
	s.users[key] = u
	return u, true
}

func (s *store) createJob(owner int64, filename string, now time.Time) entity.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextJob++
	j := &job{
		Job: entity.Job{
			ID:        entity.JobID(s.nextJob),
			Status:    constants.JobStatusPending,
			Filename:  filename,
			CreatedAt: now.UTC(),
		},
		Owner: owner,
	}
	s.jobs[j.ID] = j
	return j.Job
}

func (s *store) updateJob(id entity.JobID, fn func(*entity.Job)) (entity.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return entity.Job{}, false
	}
	fn(&j.Job)
	return j.Job, true
}

func (s *store) hasJob(id entity.JobID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

func (s *store) jobFor(owner int64, id entity.JobID) (entity.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Owner != owner {
		return entity.Job{}, false
	}
	return j.Job, true
}

func (s *store) listJobs(owner int64) []entity.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Job
	for _, j := range s.jobs {
		if j.Owner == owner {
			out = append(out, j.Job)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	return out
}

func (s *store) deleteJob(owner int64, id entity.JobID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Owner != owner {
		return false
	}
	delete(s.jobs, id)
	return true
}
