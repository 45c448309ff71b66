package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/treefind/pkg/builder"
	"github.com/Sumatoshi-tech/treefind/pkg/render"
	"github.com/Sumatoshi-tech/treefind/pkg/session"
	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeParseError     = "PARSE_ERROR"
	CodeBodyTooLarge   = "BODY_TOO_LARGE"
	CodeBuildInFlight  = "BUILD_IN_FLIGHT"
	CodeInternal       = "INTERNAL_ERROR"
)

// BuildRequest is the body of POST /api/tree.
type BuildRequest struct {
	Text   string `json:"text" validate:"maxbytes"`
	Format string `json:"format,omitempty" validate:"omitempty,oneof=auto list structured yaml json"`
}

// BuildResponse describes the installed tree.
type BuildResponse struct {
	Generation string      `json:"generation"`
	Root       tree.NodeID `json:"root,omitempty"`
	Nodes      int         `json:"nodes"`
	Height     int         `json:"height"`
}

// FindRequest is the body of POST /api/find.
type FindRequest struct {
	Query string `json:"query" validate:"max=256"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// Position fields are set for parse errors.
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Token  string `json:"token,omitempty"`
}

func (s *Server) handleBuild(c *gin.Context) {
	var req BuildRequest

	err := s.bind(c, &req, s.buildBodyLimit)
	if err != nil {
		return
	}

	err = s.valid.Struct(req)
	if err != nil {
		s.badRequest(c, err.Error())

		return
	}

	format, err := builder.ParseFormat(req.Format)
	if err != nil {
		s.badRequest(c, err.Error())

		return
	}

	built, err := s.session.BuildTreeAs(c.Request.Context(), req.Text, format)
	if err != nil {
		s.buildError(c, err)

		return
	}

	c.JSON(http.StatusOK, BuildResponse{
		Generation: built.Generation(),
		Root:       built.Root(),
		Nodes:      built.Len(),
		Height:     built.Height(),
	})
}

func (s *Server) buildError(c *gin.Context, err error) {
	var perr *builder.ParseError

	switch {
	case errors.As(err, &perr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:  err.Error(),
			Code:   CodeParseError,
			Line:   perr.Line,
			Column: perr.Column,
			Token:  perr.Token,
		})
	case errors.Is(err, session.ErrBuildInFlight):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: CodeBuildInFlight})
	default:
		s.internalError(c, err)
	}
}

func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleChart(c *gin.Context) {
	o := s.chart
	if q := strings.TrimSpace(c.Query("subtitle")); q != "" {
		o.Subtitle = q
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")

	err := render.HTML(c.Writer, s.session.Snapshot(), o)
	if err != nil {
		s.logger(c).ErrorContext(c.Request.Context(), "chart render failed", "error", err)
	}
}

func (s *Server) handleSchema(c *gin.Context) {
	c.Data(http.StatusOK, "application/schema+json", builder.Schema())
}

func (s *Server) handleFind(c *gin.Context) {
	var req FindRequest

	err := s.bind(c, &req, findBodyLimit)
	if err != nil {
		return
	}

	err = s.valid.Struct(req)
	if err != nil {
		s.badRequest(c, err.Error())

		return
	}

	result, err := s.session.FindValue(c.Request.Context(), req.Query)
	if err != nil {
		s.internalError(c, err)

		return
	}

	c.JSON(http.StatusOK, result)
}

// bind decodes a JSON body of at most limit bytes (zero means unbounded) and
// writes the error response itself when decoding fails.
func (s *Server) bind(c *gin.Context, req any, limit int64) error {
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	err := c.ShouldBindJSON(req)
	if err == nil {
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			Code:  CodeBodyTooLarge,
		})

		return err
	}

	s.badRequest(c, "invalid request body: "+err.Error())

	return err
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: CodeInvalidRequest})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger(c).ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: CodeInternal})
}

// getOrCreateRequestID returns the caller's request ID, or a new UUID.
func getOrCreateRequestID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(requestIDHeader)); id != "" {
		return id
	}

	return uuid.NewString()
}
