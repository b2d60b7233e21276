package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/doffice/constants"
	"github.com/joseph-ayodele/doffice/internal/common"
	"github.com/joseph-ayodele/doffice/internal/entity"
	"github.com/joseph-ayodele/doffice/internal/media"
)

func newTestClient(t *testing.T, setup func(r *gin.Engine)) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	setup(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLoginSendsForm(t *testing.T) {
	c := newTestClient(t, func(r *gin.Engine) {
		r.POST("/auth/token", func(ctx *gin.Context) {
			if ctx.ContentType() != "application/x-www-form-urlencoded" {
				ctx.JSON(http.StatusUnsupportedMediaType, gin.H{"detail": "form expected"})
				return
			}
			if ctx.PostForm("username") != "a@b.co" || ctx.PostForm("password") != "secret123" {
				ctx.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect email or password"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"access_token": "tok", "token_type": "bearer"})
		})
	})

	tok, err := c.Login(context.Background(), "a@b.co", "secret123")
	if err != nil || tok != "tok" {
		t.Fatalf("Login = %q, %v", tok, err)
	}

	_, err = c.Login(context.Background(), "a@b.co", "wrong")
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("Login error = %v, want ErrUnauthorized", err)
	}
	var he *HTTPError
	if !errors.As(err, &he) || he.Detail != "Incorrect email or password" {
		t.Fatalf("Login error = %v, want detail", err)
	}
}

func TestSignUpValidatesBeforeRequest(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(r *gin.Engine) {
		r.POST("/users/", func(ctx *gin.Context) {
			hits.Add(1)
			ctx.JSON(http.StatusOK, gin.H{"id": 1, "email": "a@b.co"})
		})
	})

	cases := map[string][2]string{
		"empty email":    {"", "longenough"},
		"bad email":      {"not-an-email", "longenough"},
		"short password": {"a@b.co", "short"},
		"long email":     {strings.Repeat("a", MaxEmailLength) + "@b.co", "longenough"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.SignUp(context.Background(), in[0], in[1])
			if !errors.Is(err, common.ErrValidation) {
				t.Fatalf("SignUp error = %v, want ErrValidation", err)
			}
		})
	}
	if hits.Load() != 0 {
		t.Fatalf("invalid sign ups reached the server %d times", hits.Load())
	}

	u, err := c.SignUp(context.Background(), "a@b.co", "longenough")
	if err != nil || u.Email != "a@b.co" {
		t.Fatalf("SignUp = %+v, %v", u, err)
	}
}

func TestMeSendsBearerToken(t *testing.T) {
	c := newTestClient(t, func(r *gin.Engine) {
		r.GET("/users/me", func(ctx *gin.Context) {
			if ctx.GetHeader("Authorization") != "Bearer tok" {
				ctx.JSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"id": 3, "email": "me@x.io"})
		})
	})

	if _, err := c.Me(context.Background()); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("Me without token error = %v", err)
	}
	u, err := c.WithAuth(BearerToken("tok")).Me(context.Background())
	if err != nil || u.ID != 3 {
		t.Fatalf("Me = %+v, %v", u, err)
	}
}

func TestSubmitJobMultipart(t *testing.T) {
	c := newTestClient(t, func(r *gin.Engine) {
		r.POST("/submit", func(ctx *gin.Context) {
			fh, err := ctx.FormFile("file")
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": "field required"}}})
				return
			}
			if fh.Header.Get("Content-Type") != "image/png" || fh.Filename != "page.png" {
				ctx.JSON(http.StatusBadRequest, gin.H{"detail": "bad part " + fh.Header.Get("Content-Type")})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"job_id": 42, "status": "PENDING", "message": "queued"})
		})
	})

	f := media.FromBytes("page.png", []byte("\x89PNG\r\n\x1a\n0000"))
	resp, err := c.SubmitJob(context.Background(), f)
	if err != nil {
		t.Fatalf("SubmitJob error = %v", err)
	}
	if resp.JobID != 42 || resp.Status != constants.JobStatusPending {
		t.Fatalf("SubmitJob = %+v", resp)
	}
}

func TestSubmitJobServerError(t *testing.T) {
	c := newTestClient(t, func(r *gin.Engine) {
		r.POST("/submit", func(ctx *gin.Context) {
			ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File too large"})
		})
	})

	_, err := c.SubmitJob(context.Background(), media.FromBytes("a.mp3", []byte("ID3")))
	var ue *common.UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("SubmitJob error = %v, want UploadError", err)
	}
	if ue.Network || ue.StatusCode != http.StatusRequestEntityTooLarge || ue.Detail != "File too large" {
		t.Fatalf("UploadError = %+v", ue)
	}
}

func TestSubmitJobUnreadableMedia(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(r *gin.Engine) {
		r.POST("/submit", func(ctx *gin.Context) {
			hits.Add(1)
			ctx.JSON(http.StatusOK, gin.H{"job_id": 1, "status": "PENDING"})
		})
	})

	path := filepath.Join(t.TempDir(), "gone.png")
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n0000"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	f, err := media.Open(path)
	if err != nil {
		t.Fatalf("media.Open error = %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove fixture: %v", err)
	}

	_, err = c.SubmitJob(context.Background(), f)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("SubmitJob error = %v, want ErrInvalidInput", err)
	}
	var ue *common.UploadError
	if errors.As(err, &ue) || errors.Is(err, common.ErrUpload) {
		t.Fatalf("SubmitJob error = %v, local read failure reported as upload failure", err)
	}
	if hits.Load() != 0 {
		t.Fatal("unreadable media reached the server")
	}
}

func TestRequestIDFromContext(t *testing.T) {
	seen := make(chan string, 2)
	c := newTestClient(t, func(r *gin.Engine) {
		r.GET("/users/me", func(ctx *gin.Context) {
			seen <- ctx.GetHeader("X-Request-ID")
			ctx.JSON(http.StatusOK, gin.H{"id": 3, "email": "me@x.io"})
		})
	})

	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	ctx := common.WithLogger(common.WithRequestID(context.Background(), "trace-123"), logger)
	if _, err := c.Me(ctx); err != nil {
		t.Fatalf("Me error = %v", err)
	}
	if got := <-seen; got != "trace-123" {
		t.Fatalf("X-Request-ID = %q, want trace-123", got)
	}
	if !strings.Contains(logs.String(), "req_id=trace-123") {
		t.Fatalf("context logger not used, got %q", logs.String())
	}

	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("Me error = %v", err)
	}
	if got := <-seen; got == "" || got == "trace-123" {
		t.Fatalf("X-Request-ID = %q, want a fresh id", got)
	}
}

func TestSubmitJobNetworkError(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := c.SubmitJob(context.Background(), media.FromBytes("a.png", []byte("x")))
	var ue *common.UploadError
	if !errors.As(err, &ue) || !ue.Network {
		t.Fatalf("SubmitJob error = %v, want network UploadError", err)
	}
	if !errors.Is(err, common.ErrUpload) {
		t.Fatalf("SubmitJob error = %v, want ErrUpload", err)
	}
}

func TestUpdateJobTextRefusedForGuest(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(r *gin.Engine) {
		r.PUT("/jobs/:id", func(ctx *gin.Context) {
			hits.Add(1)
			ctx.JSON(http.StatusOK, gin.H{"id": 5, "status": "COMPLETED", "text": "edited"})
		})
	})

	_, err := c.WithAuth(BearerToken("")).UpdateJobText(context.Background(), 5, "edited")
	if !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("UpdateJobText error = %v, want ErrUnauthorized", err)
	}
	if hits.Load() != 0 {
		t.Fatal("guest edit reached the server")
	}

	job, err := c.WithAuth(BearerToken("tok")).UpdateJobText(context.Background(), 5, "edited")
	if err != nil || job.ResultText != "edited" || job.ID != entity.JobID(5) {
		t.Fatalf("UpdateJobText = %+v, %v", job, err)
	}
}

func TestListAndDeleteJobs(t *testing.T) {
	c := newTestClient(t, func(r *gin.Engine) {
		r.GET("/jobs/", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, []gin.H{
				{"id": 2, "status": "COMPLETED", "text": "two", "created_at": "2024-05-01T10:00:00Z"},
				{"id": 1, "status": "FAILED", "error": "boom", "created_at": "2024-04-01T10:00:00Z"},
			})
		})
		r.DELETE("/jobs/:id", func(ctx *gin.Context) {
			if ctx.Param("id") != "2" {
				ctx.JSON(http.StatusNotFound, gin.H{"detail": "Job not found"})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	})

	jobs, err := c.ListJobs(context.Background())
	if err != nil || len(jobs) != 2 || jobs[0].ResultText != "two" || jobs[1].ErrorMessage != "boom" {
		t.Fatalf("ListJobs = %+v, %v", jobs, err)
	}
	if err := c.DeleteJob(context.Background(), 2); err != nil {
		t.Fatalf("DeleteJob error = %v", err)
	}
	if err := c.DeleteJob(context.Background(), 9); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("DeleteJob error = %v, want ErrNotFound", err)
	}
}
