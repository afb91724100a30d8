package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Veraticus/coa-classifier/internal/classifier"
	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/feedback"
)

const (
	defaultMetricsDays     = 30
	defaultLowConfLimit    = 50
	defaultEmbeddingsLimit = 100
)

// bind decodes the request body, reporting malformed JSON as invalid input.
func bind(c echo.Context, v any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return common.InvalidInput("invalid request body")
	}
	return nil
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.InvalidInput("%s must be an integer", name)
	}
	return n, nil
}

// queryFloat returns nil when the parameter is absent.
func queryFloat(c echo.Context, name string) (*float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, common.InvalidInput("%s must be a number", name)
	}
	return &f, nil
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleClassify(c echo.Context) error {
	var in TransactionInput
	if err := bind(c, &in); err != nil {
		return err
	}
	candidate, err := in.candidate()
	if err != nil {
		return err
	}

	resp, err := s.svc.Classify(c.Request().Context(), classifier.ClassifyRequest{
		CompanyID:   c.Param("company_id"),
		Description: candidate.Description,
		Vendor:      candidate.Vendor,
		Amount:      candidate.Amount,
		Date:        candidate.Date,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSimilar(c echo.Context) error {
	var in SimilarInput
	if err := bind(c, &in); err != nil {
		return err
	}
	candidate, err := in.candidate()
	if err != nil {
		return err
	}

	matches, err := s.svc.Similar(c.Request().Context(), classifier.SimilarRequest{
		CompanyID:     c.Param("company_id"),
		Description:   candidate.Description,
		Vendor:        candidate.Vendor,
		Amount:        candidate.Amount,
		TopK:          in.TopK,
		MinSimilarity: in.MinSimilarity,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SimilarResponse{Similar: matches})
}

func (s *Server) handleFeedback(c echo.Context) error {
	var in FeedbackInput
	if err := bind(c, &in); err != nil {
		return err
	}

	outcome, err := s.svc.Feedback(c.Request().Context(), feedback.Request{
		ID:                 in.ID,
		CompanyID:          c.Param("company_id"),
		TransactionID:      in.TransactionID,
		PredictedAccountID: in.PredictedAccountID,
		CorrectAccountID:   in.CorrectAccountID,
		Confidence:         in.Confidence,
		Reason:             in.Reason,
		UserID:             in.UserID,
	})
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if outcome.Duplicate {
		status = http.StatusOK
	}
	return c.JSON(status, FeedbackResponse{
		FeedbackID: outcome.Entry.ID,
		Kind:       outcome.Entry.Kind,
		Confidence: outcome.Entry.Confidence,
		Duplicate:  outcome.Duplicate,
		Degraded:   outcome.Degraded,
	})
}

func (s *Server) handleLowConfidence(c echo.Context) error {
	limit, err := queryInt(c, "limit", defaultLowConfLimit)
	if err != nil {
		return err
	}
	threshold, err := queryFloat(c, "threshold")
	if err != nil {
		return err
	}

	items, err := s.svc.LowConfidence(c.Request().Context(), c.Param("company_id"), threshold, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LowConfidenceResponse{Transactions: items, Threshold: s.svc.ReviewThreshold(threshold)})
}

func (s *Server) handleMetrics(c echo.Context) error {
	days, err := queryInt(c, "days", defaultMetricsDays)
	if err != nil {
		return err
	}
	report, err := s.svc.Metrics(c.Request().Context(), c.Param("company_id"), days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleGenerateEmbeddings(c echo.Context) error {
	in := EmbeddingsInput{Limit: defaultEmbeddingsLimit}
	if c.Request().ContentLength != 0 {
		if err := bind(c, &in); err != nil {
			return err
		}
	}

	summary, err := s.svc.GenerateEmbeddings(c.Request().Context(), c.Param("company_id"), in.Limit, nil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, EmbeddingsResponse{
		Generated: summary.Embedded,
		Skipped:   summary.Skipped,
		ElapsedMS: summary.ProcessingTime.Milliseconds(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.svc.Stats(c.Request().Context(), c.Param("company_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleRetraining(c echo.Context) error {
	advice, err := s.svc.Retraining(c.Request().Context(), c.Param("company_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, advice)
}

func (s *Server) handleMarkRetrained(c echo.Context) error {
	var in RetrainedInput
	if c.Request().ContentLength != 0 {
		if err := bind(c, &in); err != nil {
			return err
		}
	}
	at, err := s.svc.MarkRetrained(c.Request().Context(), c.Param("company_id"), in.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, RetrainedResponse{RetrainedAt: at})
}

func (s *Server) handleIngest(c echo.Context) error {
	var in TransactionInput
	if err := bind(c, &in); err != nil {
		return err
	}
	candidate, err := in.candidate()
	if err != nil {
		return err
	}

	txn, err := s.svc.Ingest(c.Request().Context(), c.Param("company_id"), candidate)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, txn)
}

func (s *Server) handleGetTransaction(c echo.Context) error {
	txn, err := s.svc.Transaction(c.Request().Context(), c.Param("company_id"), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, txn)
}

func (s *Server) handleClassifyTransaction(c echo.Context) error {
	result, err := s.svc.ClassifyTransaction(c.Request().Context(), c.Param("company_id"), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleAccounts(c echo.Context) error {
	accounts, err := s.svc.Accounts(c.Request().Context(), c.Param("company_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, accounts)
}

func (s *Server) handleSeedAccounts(c echo.Context) error {
	created, err := s.svc.SeedDefaultChart(c.Request().Context(), c.Param("company_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SeedResponse{Created: created})
}
