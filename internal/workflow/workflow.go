// Package workflow runs the fixed four-step consultation script: verify the
// photo angles, analyze the skin, extract numeric ratings, then shop.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vbonduro/glowly/internal/conversation"
)

type Step string

const (
	StepVerification Step = "verification"
	StepAnalysis     Step = "analysis"
	StepRatings      Step = "ratings"
	StepShopping     Step = "shopping"
)

// Steps lists the script in execution order.
var Steps = []Step{StepVerification, StepAnalysis, StepRatings, StepShopping}

var ErrNoPhotos = errors.New("at least one photo is required")

// VerificationError stops the script when the model reports missing angles.
type VerificationError struct {
	Message string
}

func (e *VerificationError) Error() string {
	if e.Message == "" {
		return "photo verification failed"
	}
	return e.Message
}

// Responder produces one assistant reply for the given photos and history.
// *agent.Agent satisfies it.
type Responder interface {
	Respond(ctx context.Context, photos []string, history []conversation.Turn) (string, error)
}

type Verification struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Ratings are the model's 1-5 scores.
type Ratings struct {
	Hydration       float64 `json:"hydration"`
	OilBalance      float64 `json:"oilBalance"`
	Tone            float64 `json:"tone"`
	BarrierStrength float64 `json:"barrierStrength"`
	Sensitivity     float64 `json:"sensitivity"`
}

type Product struct {
	Title       string  `json:"title"`
	Source      string  `json:"source,omitempty"`
	Link        string  `json:"link,omitempty"`
	Price       string  `json:"price,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	RatingCount int     `json:"ratingCount,omitempty"`
	ProductID   string  `json:"productId,omitempty"`
	Position    int     `json:"position,omitempty"`
}

// StepEvent is passed to the step callback after each step completes.
type StepEvent struct {
	Step  Step
	Reply string
	// History is a copy taken right after the step's reply was appended.
	History []conversation.Turn
}

// Result collects raw replies and whatever could be parsed from them. Parsed
// fields are nil when the reply did not hold the expected JSON.
type Result struct {
	Verification      string
	VerificationCheck *Verification
	Analysis          string
	RatingsReply      string
	Ratings           *Ratings
	Shopping          string
	Products          []Product
	History           []conversation.Turn
}

type Sequencer struct {
	responder Responder
	prompts   Prompts
	logger    *slog.Logger
}

func NewSequencer(responder Responder, prompts Prompts, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{responder: responder, prompts: prompts, logger: logger}
}

// Run executes the script in order, one step at a time. onStep may be nil.
//
// A verification reply reporting success=false ends the run with a
// *VerificationError and the partial result. Unparseable verification,
// ratings or product JSON is logged and the run continues.
func (s *Sequencer) Run(ctx context.Context, photos []string, onStep func(StepEvent)) (*Result, error) {
	if len(photos) == 0 {
		return nil, ErrNoPhotos
	}

	history := conversation.NewHistory()
	res := &Result{}

	ask := func(step Step) (string, error) {
		history.Append(conversation.User(s.prompts.forStep(step)))
		reply, err := s.responder.Respond(ctx, photos, history.Snapshot())
		if err != nil {
			return "", fmt.Errorf("%s step: %w", step, err)
		}
		history.Append(conversation.Assistant(reply))
		if onStep != nil {
			onStep(StepEvent{Step: step, Reply: reply, History: history.Snapshot()})
		}
		return reply, nil
	}

	for _, step := range Steps {
		reply, err := ask(step)
		if err != nil {
			res.History = history.Snapshot()
			return res, err
		}

		switch step {
		case StepVerification:
			res.Verification = reply
			check, err := parseVerification(reply)
			if err != nil {
				s.logger.Warn("could not parse verification reply, continuing", "error", err)
				break
			}
			res.VerificationCheck = check
			if !check.Success {
				res.History = history.Snapshot()
				return res, &VerificationError{Message: check.Message}
			}
		case StepAnalysis:
			res.Analysis = reply
		case StepRatings:
			res.RatingsReply = reply
			ratings, err := parseRatings(reply)
			if err != nil {
				s.logger.Warn("ratings unavailable", "error", err)
				break
			}
			res.Ratings = ratings
		case StepShopping:
			res.Shopping = reply
			products, err := parseProducts(reply)
			if err != nil {
				s.logger.Warn("products unavailable", "error", err)
				break
			}
			res.Products = products
		}
	}

	res.History = history.Snapshot()
	return res, nil
}
