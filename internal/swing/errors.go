package swing

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed taxonomy of failures the workflow can surface.
type ErrorKind string

const (
	KindTooLarge                ErrorKind = "too_large"
	KindTooSmall                ErrorKind = "too_small"
	KindCompressionFailed       ErrorKind = "compression_failed"
	KindCompressionInsufficient ErrorKind = "compression_insufficient"
	KindInvalidFormat           ErrorKind = "invalid_format"
	KindUnsupportedCodec        ErrorKind = "unsupported_codec"
	KindProcessingFailed        ErrorKind = "processing_failed"
	KindReadFailed              ErrorKind = "read_failed"
	KindValidationFailed        ErrorKind = "validation_failed"
	KindUploadFailed            ErrorKind = "upload_failed"
	KindNetworkError            ErrorKind = "network_error"
	KindAnalysisFailed          ErrorKind = "analysis_failed"
	KindAIServiceError          ErrorKind = "ai_service_error"
	KindFileNotFound            ErrorKind = "file_not_found"
	KindPermissionDenied        ErrorKind = "permission_denied"
	KindUnknown                 ErrorKind = "unknown"
)

// Error is a categorized failure. Err holds the raw cause for logs only.
type Error struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the user-facing message for this error's kind.
func (e *Error) Message() ErrorMessage { return MessageFor(e.Kind) }

// NewError builds an Error of a known kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Classify converts any error into an *Error. An error that already carries
// a kind keeps it; anything else is classified from its message.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNetworkError, Err: err}
	}
	return &Error{Kind: ClassifyMessage(err.Error()), Err: err}
}

type classifierRule struct {
	kind    ErrorKind
	needles []string
}

// classifierRules are evaluated in order against the lower-cased message.
// Specific kinds precede the broad ones they would otherwise collide with
// (insufficient compression mentions "exceeds", codec errors mention "format").
var classifierRules = []classifierRule{
	{KindCompressionInsufficient, []string{"insufficient compression", "compression insuffisante", "still exceeds", "toujours trop"}},
	{KindTooLarge, []string{"too large", "trop volumineuse", "trop volumineux", "trop lourde", "exceeds", "payload too large", "file size limit", "status 413"}},
	{KindTooSmall, []string{"too small", "trop petite", "trop court", "empty file", "fichier vide"}},
	{KindCompressionFailed, []string{"compression failed", "échec de la compression", "compress", "ffmpeg", "encoder"}},
	{KindUnsupportedCodec, []string{"codec"}},
	{KindInvalidFormat, []string{"invalid format", "unsupported format", "format non supporté", "format invalide", "not a video", "invalid data found"}},
	{KindFileNotFound, []string{"not found", "no such file", "introuvable", "enoent", "does not exist"}},
	{KindPermissionDenied, []string{"permission", "access denied", "accès refusé", "eacces", "not permitted"}},
	{KindReadFailed, []string{"failed to read", "cannot read", "read error", "impossible de lire", "lecture"}},
	{KindNetworkError, []string{"network", "réseau", "timeout", "timed out", "connection", "connexion", "fetch failed", "econnrefused", "offline", "no such host"}},
	{KindUploadFailed, []string{"upload", "téléversement", "téléchargement", "storage"}},
	{KindValidationFailed, []string{"validation"}},
	{KindProcessingFailed, []string{"processing failed", "traitement"}},
	{KindAIServiceError, []string{"gemini", "openai", "ai service", "generative", "quota", "rate limit", "status 429", "model overloaded", "service unavailable"}},
	{KindAnalysisFailed, []string{"analysis", "analyse"}},
}

// ClassifyMessage maps free-form error text to an ErrorKind.
// First matching rule wins; unmatched text is KindUnknown.
func ClassifyMessage(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	for _, rule := range classifierRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.kind
			}
		}
	}
	return KindUnknown
}

// ErrorMessage is the fixed user-facing text for an ErrorKind.
type ErrorMessage struct {
	Title      string
	Message    string
	Suggestion string
	CanRetry   bool
}

var errorMessages = map[ErrorKind]ErrorMessage{
	KindTooLarge: {
		Title:      "Video too large",
		Message:    "This video is larger than the analysis service accepts.",
		Suggestion: "Record a shorter clip or trim the video around the swing.",
		CanRetry:   true,
	},
	KindTooSmall: {
		Title:      "Video too short",
		Message:    "The video is empty or too short to analyze.",
		Suggestion: "Record the full swing from setup to follow-through.",
		CanRetry:   true,
	},
	KindCompressionFailed: {
		Title:      "Compression failed",
		Message:    "The video could not be compressed for upload.",
		Suggestion: "Try again, or record a shorter clip.",
		CanRetry:   true,
	},
	KindCompressionInsufficient: {
		Title:      "Video still too large",
		Message:    "Even after compression the video exceeds the upload limit.",
		Suggestion: "Trim the video to just the swing and try again.",
		CanRetry:   true,
	},
	KindInvalidFormat: {
		Title:      "Unsupported file",
		Message:    "This file is not a supported video format.",
		Suggestion: "Use an MP4 or MOV video recorded with your camera.",
		CanRetry:   false,
	},
	KindUnsupportedCodec: {
		Title:      "Unsupported video encoding",
		Message:    "The video uses an encoding the analysis service cannot read.",
		Suggestion: "Re-record the swing with the default camera settings.",
		CanRetry:   false,
	},
	KindProcessingFailed: {
		Title:      "Processing failed",
		Message:    "The video could not be prepared for analysis.",
		Suggestion: "Try again in a moment.",
		CanRetry:   true,
	},
	KindReadFailed: {
		Title:      "Could not read video",
		Message:    "The video file could not be read.",
		Suggestion: "Make sure the file is fully saved, then try again.",
		CanRetry:   true,
	},
	KindValidationFailed: {
		Title:      "Video check failed",
		Message:    "The video did not pass the pre-upload checks.",
		Suggestion: "Try again with a different recording.",
		CanRetry:   true,
	},
	KindUploadFailed: {
		Title:      "Upload failed",
		Message:    "The video could not be uploaded.",
		Suggestion: "Check your connection and try again.",
		CanRetry:   true,
	},
	KindNetworkError: {
		Title:      "Connection problem",
		Message:    "We could not reach the server.",
		Suggestion: "Check your internet connection and try again.",
		CanRetry:   true,
	},
	KindAnalysisFailed: {
		Title:      "Analysis failed",
		Message:    "The swing analysis did not complete.",
		Suggestion: "Try again. If it keeps failing, record from a different angle.",
		CanRetry:   true,
	},
	KindAIServiceError: {
		Title:      "Coach unavailable",
		Message:    "The AI coaching service is temporarily unavailable.",
		Suggestion: "Wait a few minutes and try again.",
		CanRetry:   true,
	},
	KindFileNotFound: {
		Title:      "Video not found",
		Message:    "The selected video could not be found.",
		Suggestion: "Select the video again.",
		CanRetry:   true,
	},
	KindPermissionDenied: {
		Title:      "Permission denied",
		Message:    "The app is not allowed to access this video.",
		Suggestion: "Grant access to your videos in the system settings.",
		CanRetry:   false,
	},
	KindUnknown: {
		Title:      "Something went wrong",
		Message:    "An unexpected error occurred.",
		Suggestion: "Try again.",
		CanRetry:   true,
	},
}

// MessageFor returns the user-facing message for kind. Kinds outside the
// taxonomy get the unknown message.
func MessageFor(kind ErrorKind) ErrorMessage {
	if m, ok := errorMessages[kind]; ok {
		return m
	}
	return errorMessages[KindUnknown]
}

// Retryable reports whether a failure of this kind is worth retrying.
func (k ErrorKind) Retryable() bool {
	return MessageFor(k).CanRetry
}
