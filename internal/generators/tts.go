package generators

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/socratic/internal/common"
	"github.com/ternarybob/socratic/internal/interfaces"
	"google.golang.org/genai"
)

// The speech model returns raw 16-bit mono PCM at this rate
const ttsSampleRate = 24000

// maxSpeechTextLength bounds the text sent to the speech model
const maxSpeechTextLength = 4000

// GeminiSpeech implements the AudioSynthesizer interface using the
// Gemini speech-generation models.
type GeminiSpeech struct {
	config  *common.TTSConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

var _ interfaces.AudioSynthesizer = (*GeminiSpeech)(nil)

// NewGeminiSpeech creates a new speech synthesizer
func NewGeminiSpeech(apiKey string, config *common.TTSConfig, logger arbor.ILogger) (*GeminiSpeech, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required for speech synthesis")
	}

	if config.Model == "" {
		config.Model = "gemini-2.5-flash-preview-tts"
	}
	if config.Voice == "" {
		config.Voice = "Kore"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Info().
		Str("model", config.Model).
		Str("voice", config.Voice).
		Msg("Speech synthesizer initialized")

	return &GeminiSpeech{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}, nil
}

// Synthesize converts text to spoken audio, returned as a WAV file
func (s *GeminiSpeech) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if text == "" {
		return nil, "", fmt.Errorf("text cannot be empty for speech synthesis")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: s.config.Voice,
				},
			},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(truncateText(text, maxSpeechTextLength), genai.RoleUser),
	}

	resp, err := s.client.Models.GenerateContent(timeoutCtx, s.config.Model, contents, config)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("text_length", len(text)).
			Msg("Speech synthesis failed")
		return nil, "", fmt.Errorf("speech synthesis failed: %w", err)
	}

	pcm := extractAudioData(resp)
	if len(pcm) == 0 {
		return nil, "", fmt.Errorf("no audio returned from speech model")
	}

	wav := wrapPCMInWAV(pcm, ttsSampleRate)

	s.logger.Info().
		Int("text_length", len(text)).
		Int("audio_bytes", len(wav)).
		Dur("duration", time.Since(startTime)).
		Msg("Speech synthesis completed")

	return wav, ".wav", nil
}

// extractAudioData pulls the inline audio bytes out of the response
func extractAudioData(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

// wrapPCMInWAV prepends a RIFF/WAVE header to raw 16-bit mono PCM
func wrapPCMInWAV(pcm []byte, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)

	byteRate := sampleRate * numChannels * bitsPerSample / 8
	blockAlign := numChannels * bitsPerSample / 8
	dataLen := len(pcm)

	buf := make([]byte, 0, 44+dataLen)
	le := binary.LittleEndian

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	le.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	le.PutUint32(header[16:20], 16) // PCM chunk size
	le.PutUint16(header[20:22], 1)  // PCM format
	le.PutUint16(header[22:24], numChannels)
	le.PutUint32(header[24:28], uint32(sampleRate))
	le.PutUint32(header[28:32], uint32(byteRate))
	le.PutUint16(header[32:34], uint16(blockAlign))
	le.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	le.PutUint32(header[40:44], uint32(dataLen))

	buf = append(buf, header...)
	buf = append(buf, pcm...)
	return buf
}
