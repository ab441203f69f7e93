package messages

import (
	"screen-translate-llm/src/geometry"
)

// Message is the base interface for everything that crosses the context boundary
type Message interface {
	Type() string
}

// MessageType constants for type identification
const (
	TypeStartCapture      = "startCapture"
	TypeCaptureVisibleTab = "captureVisibleTab"
	TypeTranslateImage    = "translateImage"
	TypeCaptureResponse   = "captureResponse"
	TypeShowTranslation   = "showTranslation"
)

// Context names. The page context owns the selection UI, the privileged
// context owns screen capture and network access.
const (
	ContextPage       = "page"
	ContextPrivileged = "privileged"
)

// TranslationParams travel with every request that ends in an API call.
type TranslationParams struct {
	APIKey         string
	TargetLanguage string
	Model          string
}

// StartCapture - sent to the page context to begin region selection
type StartCapture struct {
	TranslationParams
}

func (m StartCapture) Type() string { return TypeStartCapture }

// CaptureVisibleTab - sent by the page context when the user finished a selection
type CaptureVisibleTab struct {
	Area         geometry.CaptureArea // device pixels
	OriginalArea geometry.Rect        // CSS pixels, for logging
	PixelRatio   float64
	TranslationParams
}

func (m CaptureVisibleTab) Type() string { return TypeCaptureVisibleTab }

// TranslateImage - sent when the image is already encoded (file upload path)
type TranslateImage struct {
	ImageData []byte // PNG
	TranslationParams
}

func (m TranslateImage) Type() string { return TypeTranslateImage }

// CaptureResponse - the single reply to CaptureVisibleTab and TranslateImage
type CaptureResponse struct {
	Success     bool
	Translation string
	ImageData   []byte
	Error       string
}

func (m CaptureResponse) Type() string { return TypeCaptureResponse }

// Failure builds an error response from err.
func Failure(err error) CaptureResponse {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return CaptureResponse{Success: false, Error: msg}
}

// ShowTranslation - pushed from the privileged context, no response required
type ShowTranslation struct {
	Translation string
	ImageData   []byte
}

func (m ShowTranslation) Type() string { return TypeShowTranslation }

// Envelope wraps messages with routing metadata. Replies and pushes that
// belong to a request carry the request's ID.
type Envelope struct {
	ID      string
	From    string
	To      string
	Reply   bool
	Message Message
}
