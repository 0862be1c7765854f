package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrWong99/phonalign/internal/history"
	"github.com/MrWong99/phonalign/internal/lexicon"
	"github.com/MrWong99/phonalign/internal/observe"
	"github.com/MrWong99/phonalign/pkg/pronunciation"
	"github.com/MrWong99/phonalign/pkg/syllable"
)

// analyzeRequest is the body of POST /v1/analyze. Exactly one of Lexicon and
// Text selects the reference.
type analyzeRequest struct {
	Lexicon    []pronunciation.LexiconInput `json:"lexicon"`
	Text       string                       `json:"text"`
	Language   string                       `json:"language"`
	Recognized string                       `json:"recognizedPhonemes"`
	Timings    []syllable.Timing            `json:"timings"`
	Transcript string                       `json:"transcript"`
	Feedback   bool                         `json:"feedback"`
}

// analyzeResponse is the analysis plus the fields the server adds.
type analyzeResponse struct {
	*pronunciation.Analysis
	ID       string `json:"id,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	var req analyzeRequest
	if err := decodeJSON(w, r, s.maxBody, &req); err != nil {
		writeError(w, r, decodeStatus(err), "invalid request: "+err.Error())
		return
	}

	inputs, status, err := s.resolveLexicon(ctx, req)
	if err != nil {
		var unknown *lexicon.UnknownWordsError
		if errors.As(err, &unknown) {
			writeJSON(w, status, errorBody{
				Error:         err.Error(),
				UnknownWords:  unknown.Words,
				CorrelationID: observe.CorrelationID(ctx),
			})
			return
		}
		if status >= http.StatusInternalServerError {
			log.Error("lexicon lookup failed", "err", err)
		}
		writeError(w, r, status, err.Error())
		return
	}

	analysis, err := s.analyze(ctx, pronunciation.Request{
		Lexicon:    inputs,
		Recognized: req.Recognized,
		Timings:    req.Timings,
		Transcript: req.Transcript,
	})
	if err != nil {
		switch {
		case errors.Is(err, pronunciation.ErrEmptyWord):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case ctx.Err() != nil:
			log.Debug("analysis cancelled", "err", err)
		default:
			log.Error("analysis failed", "err", err)
			writeError(w, r, http.StatusInternalServerError, "analysis failed")
		}
		return
	}

	resp := analyzeResponse{Analysis: analysis}
	if req.Feedback {
		resp.Feedback = s.feedback(ctx, analysis)
	}

	rec, err := s.history.Append(ctx, history.Record{
		Text:     req.Text,
		Language: req.Language,
		Analysis: analysis,
		Feedback: resp.Feedback,
	})
	if err != nil {
		// The analysis is still useful without an ID.
		s.metrics.RecordHistoryWrite(ctx, "error")
		log.Warn("history append failed", "err", err)
	} else {
		s.metrics.RecordHistoryWrite(ctx, "ok")
		resp.ID = rec.ID
	}

	writeJSON(w, http.StatusOK, resp)
}

// analyze runs the current analyzer and tracks it in the in-flight gauge,
// including when Analyze panics.
func (s *Server) analyze(ctx context.Context, req pronunciation.Request) (*pronunciation.Analysis, error) {
	s.metrics.ActiveAnalyses.Add(ctx, 1)
	defer s.metrics.ActiveAnalyses.Add(ctx, -1)
	return s.analyzer.Load().Analyze(ctx, req)
}

// resolveLexicon returns the reference words of req and, on failure, the
// response status to report.
func (s *Server) resolveLexicon(ctx context.Context, req analyzeRequest) ([]pronunciation.LexiconInput, int, error) {
	switch {
	case len(req.Lexicon) > 0 && req.Text != "":
		return nil, http.StatusBadRequest, errors.New("lexicon and text are mutually exclusive")
	case len(req.Lexicon) > 0:
		return req.Lexicon, 0, nil
	case req.Text == "":
		return nil, http.StatusBadRequest, errors.New("one of lexicon or text is required")
	}

	lex := s.currentLexicon()
	if lex == nil {
		return nil, http.StatusUnprocessableEntity, errors.New("no dictionary is configured; send a lexicon")
	}
	inputs, err := lex.Lookup(ctx, req.Text, req.Language)
	switch {
	case err == nil:
		return inputs, 0, nil
	case errors.Is(err, lexicon.ErrUnknownWord),
		errors.Is(err, lexicon.ErrEmptyText),
		errors.Is(err, lexicon.ErrUnsupportedLanguage):
		return nil, http.StatusUnprocessableEntity, err
	default:
		return nil, http.StatusBadGateway, err
	}
}

// feedback asks the coach for tips. Failures are logged and yield no
// feedback; the analysis is returned regardless.
func (s *Server) feedback(ctx context.Context, analysis *pronunciation.Analysis) string {
	c := s.coach.Load()
	if c == nil {
		return ""
	}
	text, err := c.Feedback(ctx, analysis)
	if err != nil {
		return ""
	}
	return text
}
