// Package speech turns text into MP3 audio
package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"bitwise74/smart-librarian/internal/apperr"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	emptyText   = "I have nothing to read."
	maxTextLen  = 3000
	contentType = "audio/mpeg"
)

var ErrNotMP3 = errors.New("synthesized audio is not mp3")

// Voices used for languages other than the default one
var languageVoices = map[string]string{
	"ro": "Carmen",
	"fr": "Celine",
	"de": "Marlene",
	"es": "Lucia",
	"it": "Carla",
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// AudioCache stores rendered audio by key
type AudioCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Polly synthesizes speech with Amazon Polly
type Polly struct {
	client *polly.Client
	engine string
}

func NewPolly(c *polly.Client, engine string) *Polly {
	return &Polly{client: c, engine: engine}
}

func (p *Polly) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	out, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		OutputFormat: types.OutputFormatMp3,
		VoiceId:      types.VoiceId(voice),
		Engine:       types.Engine(p.engine),
	})
	if err != nil {
		return nil, fmt.Errorf("polly synthesis failed, %w", err)
	}
	defer out.AudioStream.Close()

	return io.ReadAll(out.AudioStream)
}

// Service renders text and keeps the results in an optional cache
type Service struct {
	synth        Synthesizer
	cache        AudioCache
	defaultVoice string
}

// NewService creates the TTS service. cache may be nil.
func NewService(s Synthesizer, cache AudioCache, defaultVoice string) *Service {
	return &Service{synth: s, cache: cache, defaultVoice: defaultVoice}
}

func (s *Service) voiceFor(lang string) string {
	if v, ok := languageVoices[strings.ToLower(lang)]; ok {
		return v
	}

	return s.defaultVoice
}

// Speak returns MP3 audio for text. Blank text reads a stock sentence.
func (s *Service) Speak(ctx context.Context, text, lang string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = emptyText
	}

	if utf8.RuneCountInString(text) > maxTextLen {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("Text can't be longer than %d characters", maxTextLen))
	}

	voice := s.voiceFor(lang)
	key := cacheKey(lang, voice, text)

	if s.cache != nil {
		data, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			zap.L().Warn("Failed to read cached audio", zap.String("key", key), zap.Error(err))
		} else if ok {
			return data, nil
		}
	}

	data, err := s.synth.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "TTS failed", err)
	}

	if !mimetype.Detect(data).Is(contentType) {
		return nil, apperr.Wrap(apperr.KindUnavailable, "TTS failed", ErrNotMP3)
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, data, contentType); err != nil {
			zap.L().Warn("Failed to cache audio", zap.String("key", key), zap.Error(err))
		}
	}

	return data, nil
}

func cacheKey(lang, voice, text string) string {
	sum := sha256.Sum256([]byte(lang + "\x00" + voice + "\x00" + text))
	return "tts/" + hex.EncodeToString(sum[:]) + ".mp3"
}
