// Package handlers provides the SocialWiz mode orchestrators and their HTTP
// handlers.
//
// A request flows through the validator, the vision preprocessor (mode 3
// only), the prompt builder and the completion dispatcher. Each step is
// stateless; the Service holds only shared, goroutine-safe collaborators.
package handlers

import (
	"context"

	"github.com/teilomillet/socialwiz/config"
	"github.com/teilomillet/socialwiz/server/processing"
	"github.com/teilomillet/socialwiz/server/provider"
	"github.com/teilomillet/socialwiz/server/validation"
	"go.uber.org/zap"
)

// RewriteResponse is the result of mode 1.
type RewriteResponse struct {
	RewrittenReply string `json:"rewritten_reply"`
}

// IcebreakerResponse is the result of mode 2.
type IcebreakerResponse struct {
	Icebreaker string `json:"icebreaker"`
}

// CurveballResponse is the result of mode 3. ImageAnalysisUsed reports
// whether an image description made it into the prompt.
type CurveballResponse struct {
	CurveballReply    string `json:"curveball_reply"`
	ImageAnalysisUsed bool   `json:"image_analysis_used"`
}

// Service runs the three conversation modes.
type Service struct {
	dispatcher *provider.Dispatcher
	vision     *provider.VisionPreprocessor
	validator  *validation.Validator
	modes      config.ModesConfig
	maxTokens  int
	logger     *zap.Logger
}

// NewService creates a Service. vision may be nil, which disables image
// analysis.
func NewService(dispatcher *provider.Dispatcher, vision *provider.VisionPreprocessor, validator *validation.Validator, cfg *config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		dispatcher: dispatcher,
		vision:     vision,
		validator:  validator,
		modes:      cfg.Modes,
		maxTokens:  cfg.LLM.MaxTokens,
		logger:     logger,
	}
}

// Rewrite rewrites the user's draft reply in the requested mood.
func (s *Service) Rewrite(ctx context.Context, req processing.RewriteRequest) (RewriteResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return RewriteResponse{}, err
	}

	spec, err := processing.BuildRewritePrompt(req, s.sampling(s.modes.Rewrite))
	if err != nil {
		return RewriteResponse{}, err
	}

	reply, err := s.complete(ctx, spec)
	if err != nil {
		return RewriteResponse{}, err
	}
	return RewriteResponse{RewrittenReply: reply}, nil
}

// Icebreaker generates a conversation opener of the requested type.
func (s *Service) Icebreaker(ctx context.Context, req processing.IcebreakerRequest) (IcebreakerResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return IcebreakerResponse{}, err
	}

	spec, err := processing.BuildIcebreakerPrompt(req, s.sampling(s.modes.Icebreaker))
	if err != nil {
		return IcebreakerResponse{}, err
	}

	reply, err := s.complete(ctx, spec)
	if err != nil {
		return IcebreakerResponse{}, err
	}
	return IcebreakerResponse{Icebreaker: reply}, nil
}

// Curveball crafts a reply to an awkward situation. The text-only prompt must
// fit the token budget before an attached image is described. If describing
// fails, or the description would overrun the budget, the reply is generated
// without it.
func (s *Service) Curveball(ctx context.Context, req processing.CurveballRequest) (CurveballResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return CurveballResponse{}, err
	}

	sampling := s.sampling(s.modes.Curveball)
	spec, err := processing.BuildCurveballPrompt(req, "", sampling)
	if err != nil {
		return CurveballResponse{}, err
	}
	if err := s.validator.CheckPrompt(spec); err != nil {
		return CurveballResponse{}, err
	}

	description := s.vision.Describe(ctx, req.Image)
	if description.Used {
		withImage, err := processing.BuildCurveballPrompt(req, description.Text, sampling)
		if err != nil {
			return CurveballResponse{}, err
		}
		if err := s.validator.CheckPrompt(withImage); err != nil {
			s.logger.Warn("image description exceeds the token budget, replying without it",
				zap.Int("description_length", len(description.Text)),
			)
			description.Used = false
		} else {
			spec = withImage
		}
	}

	reply, err := s.dispatcher.Dispatch(ctx, spec)
	if err != nil {
		return CurveballResponse{}, err
	}
	return CurveballResponse{
		CurveballReply:    reply,
		ImageAnalysisUsed: description.Used,
	}, nil
}

// VisionEnabled reports whether image analysis is configured.
func (s *Service) VisionEnabled() bool {
	return s.vision.Enabled()
}

// Provider returns the inference provider name.
func (s *Service) Provider() string {
	return s.dispatcher.Provider()
}

// CircuitState returns the inference provider's circuit breaker state.
func (s *Service) CircuitState() string {
	return s.dispatcher.State()
}

func (s *Service) complete(ctx context.Context, spec processing.PromptSpec) (string, error) {
	if err := s.validator.CheckPrompt(spec); err != nil {
		return "", err
	}
	return s.dispatcher.Dispatch(ctx, spec)
}

func (s *Service) sampling(mode config.ModeConfig) processing.Sampling {
	return processing.Sampling{Temperature: mode.Temperature, MaxTokens: s.maxTokens}
}
