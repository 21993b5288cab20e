package server

import (
	"sync"

	"github.com/google/uuid"

	"ocrup/internal/model"
)

// Job — задача конвертации на стороне бэкенда.
type Job struct {
	UID      string
	Status   string
	Messages string
	Progress float64
	Results  []ResultPair
}

// ResultPair — (имя файла, извлеченный текст) в порядке обработки.
type ResultPair struct {
	Name string
	Text string
}

func (j Job) Clone() Job {
	c := j
	c.Results = append([]ResultPair(nil), j.Results...)
	return c
}

// JobStore хранит задачи в памяти. Задача живет до выдачи результатов:
// Take отдает ее и удаляет.
type JobStore struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	cancelled bool
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

func (s *JobStore) Create() (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return Job{}, model.ErrServerCancelled
	}

	job := &Job{
		UID:      uuid.NewString(),
		Status:   model.StatusProcessing,
		Messages: "Already started.",
	}
	s.jobs[job.UID] = job
	return job.Clone(), nil
}

func (s *JobStore) Get(uid string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cancelled {
		return Job{}, model.ErrServerCancelled
	}

	job, exists := s.jobs[uid]
	if !exists {
		return Job{}, model.ErrTaskNotFound
	}
	return job.Clone(), nil
}

// Take возвращает задачу и удаляет ее из стора (результаты выдаются
// один раз).
func (s *JobStore) Take(uid string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return Job{}, model.ErrServerCancelled
	}

	job, exists := s.jobs[uid]
	if !exists {
		return Job{}, model.ErrTaskNotFound
	}
	delete(s.jobs, uid)
	return job.Clone(), nil
}

// Update применяет мутацию к задаче под локом.
func (s *JobStore) Update(uid string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, exists := s.jobs[uid]; exists {
		fn(job)
	}
}

func (s *JobStore) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cancelled {
		clear(s.jobs)
		s.cancelled = true
	}
}
