package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/llm"
	"github.com/utafrali/revu/internal/repository"
	apperrors "github.com/utafrali/revu/pkg/errors"
)

// Limits on what goes into a chat request.
const (
	MaxReviewChars      = 500
	MaxReviewsInContext = 20
	MaxHistoryMessages  = 10

	chatMaxTokens = 1024
)

// ChatModel sends Messages API requests. *llm.Client implements it.
type ChatModel interface {
	Configured() bool
	CreateMessage(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// ChatMessage is one prior turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatInput is a question about a product plus the conversation so far.
type ChatInput struct {
	Message string
	History []ChatMessage
}

// ChatReply is the assistant's answer.
type ChatReply struct {
	Reply string `json:"reply"`
	Model string `json:"model"`
}

// ChatService answers questions about a product grounded in its reviews.
type ChatService struct {
	products repository.ProductRepository
	reviews  repository.ReviewRepository
	model    ChatModel
	logger   *slog.Logger
}

// NewChatService creates a new chat service.
func NewChatService(products repository.ProductRepository, reviews repository.ReviewRepository, model ChatModel, logger *slog.Logger) *ChatService {
	return &ChatService{
		products: products,
		reviews:  reviews,
		model:    model,
		logger:   logger,
	}
}

// Chat answers in.Message about the product identified by productID.
// Without model credentials it fails with a not-configured error before
// touching the store.
func (s *ChatService) Chat(ctx context.Context, productID string, in ChatInput) (*ChatReply, error) {
	if !s.model.Configured() {
		return nil, apperrors.NotConfigured("chat")
	}

	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, apperrors.InvalidInput("message is required")
	}
	if err := ValidateHistory(in.History); err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	reviews, err := s.reviews.ListByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("list product reviews: %w", err)
	}

	history := CapHistory(in.History)
	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: message})

	resp, err := s.model.CreateMessage(ctx, llm.Request{
		MaxTokens: chatMaxTokens,
		System:    BuildSystemPrompt(product, reviews),
		Messages:  messages,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return nil, apperrors.Upstream(llm.APIName, errors.New("empty chat reply"))
	}

	s.logger.InfoContext(ctx, "chat answered",
		slog.String("product_id", productID),
		slog.Int("history", len(history)),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
	)

	return &ChatReply{Reply: reply, Model: resp.Model}, nil
}

// ValidateHistory checks that every turn has a known role and content.
func ValidateHistory(history []ChatMessage) error {
	for i, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			return apperrors.InvalidInput(fmt.Sprintf("history[%d].role must be 'user' or 'assistant'", i))
		}
		if strings.TrimSpace(m.Content) == "" {
			return apperrors.InvalidInput(fmt.Sprintf("history[%d].content must be a non-empty string", i))
		}
	}
	return nil
}

// CapHistory keeps the last MaxHistoryMessages turns.
func CapHistory(history []ChatMessage) []ChatMessage {
	if len(history) <= MaxHistoryMessages {
		return history
	}
	return history[len(history)-MaxHistoryMessages:]
}

const chatPreamble = `You are a helpful product research assistant for Revu AI, an AI-powered product review aggregator.

You have been given detailed information about a specific product along with real customer reviews. Your job is to help the user understand this product: answer questions about its features, quality, value, common issues, and whether it's a good fit for their needs.

Be concise, honest, and grounded in the review data. If a question cannot be answered from the provided information, say so clearly.`

// BuildSystemPrompt renders the product and its most positive reviews into
// the chat system prompt.
func BuildSystemPrompt(p *domain.Product, reviews []domain.Review) string {
	description := p.Description
	if strings.TrimSpace(description) == "" {
		description = "No description provided."
	}
	category := p.Category
	if category == "" {
		category = "Uncategorized"
	}

	selected := slices.Clone(reviews)
	slices.SortStableFunc(selected, func(a, b domain.Review) int {
		switch {
		case a.SentimentScore > b.SentimentScore:
			return -1
		case a.SentimentScore < b.SentimentScore:
			return 1
		default:
			return 0
		}
	})
	if len(selected) > MaxReviewsInContext {
		selected = selected[:MaxReviewsInContext]
	}

	var sb strings.Builder
	sb.WriteString(chatPreamble)
	sb.WriteString("\n\n=== PRODUCT INFORMATION ===\n")
	fmt.Fprintf(&sb, "Product: %s\n", p.Name)
	fmt.Fprintf(&sb, "Category: %s\n", category)
	fmt.Fprintf(&sb, "Price: $%s\n", p.Price.StringFixed(2))
	fmt.Fprintf(&sb, "Rating: %s/10 (based on %d reviews)\n", strconv.FormatFloat(p.Rating, 'f', 1, 64), p.ReviewCount)
	fmt.Fprintf(&sb, "Description: %s\n", description)

	fmt.Fprintf(&sb, "\n=== CUSTOMER REVIEWS (%d of %d total) ===\n", len(selected), p.ReviewCount)
	if len(selected) == 0 {
		sb.WriteString("No reviews available.")
		return sb.String()
	}

	for i, r := range selected {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Review %d | Source: %s | Sentiment: %.2f]\n%s",
			i+1, strings.ToUpper(string(r.Source)), r.SentimentScore, truncateRunes(strings.TrimSpace(r.Text), MaxReviewChars))
		if len(r.Pros) > 0 {
			fmt.Fprintf(&sb, "\nPros: %s", strings.Join(r.Pros, ", "))
		}
		if len(r.Cons) > 0 {
			fmt.Fprintf(&sb, "\nCons: %s", strings.Join(r.Cons, ", "))
		}
	}
	return sb.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
