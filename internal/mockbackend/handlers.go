package mockbackend

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/entity"
	"github.com/joseph-ayodele/doffice/internal/wire"
)

const (
	minPasswordLength = 8
	maxUploadBytes    = 20 << 20
	googleMockPrefix  = "mock:"
)

func (s *Server) handleSignUp(c *gin.Context) {
	var req wire.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondDetail(c, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		respondDetail(c, http.StatusUnprocessableEntity, "invalid email address")
		return
	}
	if len(req.Password) < minPasswordLength {
		respondDetail(c, http.StatusUnprocessableEntity, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		s.logger.Error("mock.signup.hash_error", "error", err)
		respondDetail(c, http.StatusInternalServerError, "could not create user")
		return
	}
	u, ok := s.store.createUser(email, hash)
	if !ok {
		respondDetail(c, http.StatusBadRequest, "Email already registered")
		return
	}
	s.logger.Info("mock.signup.ok", "user_id", u.ID)
	c.JSON(http.StatusOK, entity.User{ID: u.ID, Email: u.Email})
}

func (s *Server) handleToken(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	u, ok := s.store.userByEmail(email)
	if !ok || len(u.PasswordHash) == 0 || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		respondDetail(c, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	s.respondToken(c, u.Email)
}

// handleGoogle accepts either a JWT carrying an email claim or the literal "mock:<email>".
// Unknown emails get an account without a password.
func (s *Server) handleGoogle(c *gin.Context) {
	var req wire.GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IDToken == "" {
		respondDetail(c, http.StatusUnprocessableEntity, "id_token is required")
		return
	}
	var (
		email string
		err   error
	)
	if rest, ok := strings.CutPrefix(req.IDToken, googleMockPrefix); ok {
		email = strings.TrimSpace(rest)
		if email == "" {
			err = errors.New("empty email")
		}
	} else {
		email, err = googleEmail(req.IDToken)
	}
	if err != nil {
		s.logger.Warn("mock.google.invalid_token", "error", err)
		respondDetail(c, http.StatusUnauthorized, "Invalid Google token")
		return
	}
	if _, ok := s.store.userByEmail(email); !ok {
		s.store.createUser(email, nil)
	}
	s.respondToken(c, email)
}

func (s *Server) respondToken(c *gin.Context, email string) {
	tok, err := s.tokens.issue(email, s.now())
	if err != nil {
		s.logger.Error("mock.token.sign_error", "error", err)
		respondDetail(c, http.StatusInternalServerError, "could not issue token")
		return
	}
	c.JSON(http.StatusOK, wire.TokenResponse{AccessToken: tok, TokenType: "bearer"})
}

func (s *Server) handleMe(c *gin.Context) {
	u, _ := currentUser(c)
	c.JSON(http.StatusOK, entity.User{ID: u.ID, Email: u.Email})
}

func (s *Server) handleSubmit(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respondDetail(c, http.StatusUnprocessableEntity, "file is required")
		return
	}
	if fh.Size > maxUploadBytes {
		respondDetail(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondDetail(c, http.StatusBadRequest, "could not read upload")
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	_ = f.Close()
	if err != nil {
		respondDetail(c, http.StatusBadRequest, "could not read upload")
		return
	}

	if s.ctx.Err() != nil {
		respondDetail(c, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	var owner int64
	if u, ok := currentUser(c); ok {
		owner = u.ID
	}
	j := s.store.createJob(owner, fh.Filename, s.now())
	s.logger.Info("mock.submit.accepted", "job_id", j.ID, "filename", fh.Filename, "size", len(data), "guest", owner == 0)

	s.wg.Add(1)
	go s.process(j, data)

	c.JSON(http.StatusOK, wire.SubmitResponse{
		JobID:   j.ID,
		Status:  constants.JobStatusPending,
		Message: "File uploaded successfully. Processing started.",
	})
}

// process walks a job through PROCESSING to a terminal state, pausing ProcessDelay between
// steps. Empty uploads fail.
func (s *Server) process(j entity.Job, data []byte) {
	defer s.wg.Done()

	if !s.pause() {
		return
	}
	s.setStatus(j.ID, func(job *entity.Job) { job.Status = constants.JobStatusProcessing })
	s.hub.publish(wire.Message{JobID: j.ID, Status: constants.JobStatusProcessing, Filename: j.Filename, Type: constants.MessageStatusUpdate})

	if !s.pause() {
		return
	}
	if len(data) == 0 {
		const reason = "uploaded file is empty"
		s.setStatus(j.ID, func(job *entity.Job) {
			job.Status = constants.JobStatusFailed
			job.ErrorMessage = reason
		})
		s.hub.publish(wire.Message{JobID: j.ID, Status: constants.JobStatusFailed, Error: reason, Filename: j.Filename, Type: constants.MessageJobFailed})
		s.logger.Info("mock.job.failed", "job_id", j.ID, "reason", reason)
		return
	}
	text := resultText(j.Filename, data)
	s.setStatus(j.ID, func(job *entity.Job) {
		job.Status = constants.JobStatusCompleted
		job.ResultText = text
	})
	s.hub.publish(wire.Message{JobID: j.ID, Status: constants.JobStatusCompleted, Text: text, Filename: j.Filename, Type: constants.MessageJobCompleted})
	s.logger.Info("mock.job.completed", "job_id", j.ID, "text_len", len(text))
}

func (s *Server) setStatus(id entity.JobID, fn func(*entity.Job)) {
	if _, ok := s.store.updateJob(id, fn); !ok {
		s.logger.Warn("mock.job.vanished", "job_id", id)
	}
}

// pause waits ProcessDelay and reports false when the server is closing.
func (s *Server) pause() bool {
	if s.cfg.ProcessDelay <= 0 {
		return s.ctx.Err() == nil
	}
	t := time.NewTimer(s.cfg.ProcessDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// resultText echoes plain-text uploads and describes anything else.
func resultText(filename string, data []byte) string {
	mt := mimetype.Detect(data)
	if mt.Is("text/plain") && utf8.Valid(data) {
		return string(data)
	}
	return fmt.Sprintf("Extracted content of %s (%s, %d bytes)", filename, mt.String(), len(data))
}

func (s *Server) handleListJobs(c *gin.Context) {
	u, _ := currentUser(c)
	jobs := s.store.listJobs(u.ID)
	if jobs == nil {
		jobs = []entity.Job{}
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) handleUpdateJob(c *gin.Context) {
	u, _ := currentUser(c)
	id, ok := jobIDParam(c, "id")
	if !ok {
		return
	}
	var req wire.UpdateTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondDetail(c, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if _, ok := s.store.jobFor(u.ID, id); !ok {
		respondDetail(c, http.StatusNotFound, "Job not found")
		return
	}
	j, _ := s.store.updateJob(id, func(job *entity.Job) { job.ResultText = req.Text })
	c.JSON(http.StatusOK, j)
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	u, _ := currentUser(c)
	id, ok := jobIDParam(c, "id")
	if !ok {
		return
	}
	if !s.store.deleteJob(u.ID, id) {
		respondDetail(c, http.StatusNotFound, "Job not found")
		return
	}
	s.hub.forget(id)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStatusSocket(c *gin.Context) {
	id, ok := jobIDParam(c, "job_id")
	if !ok {
		return
	}
	if !s.store.hasJob(id) {
		respondDetail(c, http.StatusNotFound, "Job not found")
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("mock.ws.upgrade_error", "job_id", id, "error", err)
		return
	}
	s.logger.Info("mock.ws.connected", "job_id", id)
	s.hub.serve(id, conn)
	s.logger.Info("mock.ws.disconnected", "job_id", id)
}

func jobIDParam(c *gin.Context, name string) (entity.JobID, bool) {
	id, err := entity.ParseJobID(c.Param(name))
	if err != nil {
		respondDetail(c, http.StatusUnprocessableEntity, "invalid job id")
		return 0, false
	}
	return id, true
}
