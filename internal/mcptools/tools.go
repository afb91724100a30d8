package mcptools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/coa-classifier/internal/classifier"
	"github.com/Veraticus/coa-classifier/internal/common"
	"github.com/Veraticus/coa-classifier/internal/feedback"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("classify_transaction",
		mcp.WithDescription("Suggest chart-of-accounts codes for a transaction, ranked by confidence, with the similar reviewed transactions that informed them"),
		mcp.WithString("company_id", mcp.Required(), mcp.Description("Company the transaction belongs to")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Transaction description as it appears on the statement")),
		mcp.WithString("amount", mcp.Required(), mcp.Description("Signed decimal amount; negative for money leaving the company")),
		mcp.WithString("vendor", mcp.Description("Counterparty name")),
		mcp.WithString("date", mcp.Description("Transaction date, YYYY-MM-DD")),
	), s.handleClassify)

	s.mcpServer.AddTool(mcp.NewTool("find_similar_transactions",
		mcp.WithDescription("Find reviewed transactions whose embeddings are closest to the given one"),
		mcp.WithString("company_id", mcp.Required(), mcp.Description("Company to search")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Transaction description")),
		mcp.WithString("amount", mcp.Description("Signed decimal amount")),
		mcp.WithString("vendor", mcp.Description("Counterparty name")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of matches"), mcp.Min(1), mcp.Max(50)),
		mcp.WithNumber("min_similarity", mcp.Description("Minimum cosine similarity"), mcp.Min(0), mcp.Max(1)),
	), s.handleSimilar)

	s.mcpServer.AddTool(mcp.NewTool("record_feedback",
		mcp.WithDescription("Record that a human confirmed or corrected a suggested account"),
		mcp.WithString("company_id", mcp.Required(), mcp.Description("Company the transaction belongs to")),
		mcp.WithString("transaction_id", mcp.Required(), mcp.Description("Transaction that was reviewed")),
		mcp.WithNumber("predicted_account_id", mcp.Required(), mcp.Description("Account the classifier suggested")),
		mcp.WithNumber("correct_account_id", mcp.Required(), mcp.Description("Account the reviewer chose")),
		mcp.WithNumber("predicted_confidence", mcp.Required(), mcp.Description("Confidence shown to the reviewer"), mcp.Min(0), mcp.Max(1)),
		mcp.WithString("feedback_id", mcp.Description("Client-generated UUID that makes retries idempotent")),
		mcp.WithString("reason", mcp.Description("Why the reviewer chose this account")),
		mcp.WithString("user_id", mcp.Description("Reviewer")),
	), s.handleFeedback)

	s.mcpServer.AddTool(mcp.NewTool("low_confidence_transactions",
		mcp.WithDescription("List suggested transactions that need human review, least confident first"),
		mcp.WithString("company_id", mcp.Required(), mcp.Description("Company to inspect")),
		mcp.WithNumber("threshold", mcp.Description("Confidence below which a suggestion needs review"), mcp.Min(0), mcp.Max(1)),
		mcp.WithNumber("limit", mcp.Description("Maximum number of transactions"), mcp.DefaultNumber(50)),
	), s.handleLowConfidence)

	s.mcpServer.AddTool(mcp.NewTool("accuracy_metrics",
		mcp.WithDescription("Daily accuracy trend, feedback summary and retraining recommendation"),
		mcp.WithString("company_id", mcp.Required(), mcp.Description("Company to inspect")),
		mcp.WithNumber("days", mcp.Description("Window in days"), mcp.DefaultNumber(30), mcp.Min(1), mcp.Max(feedback.MaxTrendDays)),
	), s.handleMetrics)

	s.mcpServer.AddTool(mcp.NewTool("embedding_stats",
		mcp.WithDescription("Embedding coverage and the active model for a company"),
		mcp.WithString("company_id", mcp.Required(), mcp.Description("Company to inspect")),
	), s.handleStats)
}

// amountArg accepts the amount as a decimal string or a JSON number.
func amountArg(request mcp.CallToolRequest, required bool) (decimal.Decimal, error) {
	switch v := request.GetArguments()["amount"].(type) {
	case string:
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, common.InvalidInput("amount %q is not a decimal", v)
		}
		return amount, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case nil:
		if required {
			return decimal.Zero, common.InvalidInput("amount is required")
		}
		return decimal.Zero, nil
	default:
		return decimal.Zero, common.InvalidInput("amount must be a string or number")
	}
}

func dateArg(request mcp.CallToolRequest) (time.Time, error) {
	raw := request.GetString("date", "")
	if raw == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, common.InvalidInput("date %q must be YYYY-MM-DD", raw)
	}
	return date, nil
}

func (s *Server) handleClassify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	amount, err := amountArg(request, true)
	if err != nil {
		return errorResult(err)
	}
	date, err := dateArg(request)
	if err != nil {
		return errorResult(err)
	}

	resp, err := s.svc.Classify(ctx, classifier.ClassifyRequest{
		CompanyID:   request.GetString("company_id", ""),
		Description: request.GetString("description", ""),
		Vendor:      request.GetString("vendor", ""),
		Amount:      amount,
		Date:        date,
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(resp)
}

func (s *Server) handleSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	amount, err := amountArg(request, false)
	if err != nil {
		return errorResult(err)
	}

	req := classifier.SimilarRequest{
		CompanyID:   request.GetString("company_id", ""),
		Description: request.GetString("description", ""),
		Vendor:      request.GetString("vendor", ""),
		Amount:      amount,
		TopK:        request.GetInt("top_k", 0),
	}
	if _, ok := request.GetArguments()["min_similarity"]; ok {
		floor := request.GetFloat("min_similarity", 0)
		req.MinSimilarity = &floor
	}

	matches, err := s.svc.Similar(ctx, req)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{"similar_transactions": matches})
}

func (s *Server) handleFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	outcome, err := s.svc.Feedback(ctx, feedback.Request{
		ID:                 request.GetString("feedback_id", ""),
		CompanyID:          request.GetString("company_id", ""),
		TransactionID:      request.GetString("transaction_id", ""),
		PredictedAccountID: int64(request.GetInt("predicted_account_id", 0)),
		CorrectAccountID:   int64(request.GetInt("correct_account_id", 0)),
		Confidence:         request.GetFloat("predicted_confidence", -1),
		Reason:             request.GetString("reason", ""),
		UserID:             request.GetString("user_id", ""),
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{
		"feedback_id": outcome.Entry.ID,
		"kind":        outcome.Entry.Kind,
		"duplicate":   outcome.Duplicate,
		"degraded":    outcome.Degraded,
	})
}

func (s *Server) handleLowConfidence(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var threshold *float64
	if _, ok := request.GetArguments()["threshold"]; ok {
		v := request.GetFloat("threshold", 0)
		threshold = &v
	}
	items, err := s.svc.LowConfidence(ctx,
		request.GetString("company_id", ""),
		threshold,
		request.GetInt("limit", 50))
	if err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText(formatReviewQueue(items, s.svc.ReviewThreshold(threshold))), nil
}

func (s *Server) handleMetrics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.Metrics(ctx, request.GetString("company_id", ""), request.GetInt("days", 30))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(report)
}

func (s *Server) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.Stats(ctx, request.GetString("company_id", ""))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(stats)
}
