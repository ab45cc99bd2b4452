package speech

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
	opus "github.com/qrtc/opus-go"
)

const opusMaxPacketSize = 4000

// OpusEncoderConfig Opus编码器配置
type OpusEncoderConfig struct {
	SampleRate  int
	MaxChannels int
}

// OpusEncoder qrtc/opus-go 编码器的薄封装
type OpusEncoder struct {
	encoder *opus.OpusEncoder
	config  *OpusEncoderConfig
}

// NewOpusEncoder 创建Opus编码器，config 为 nil 时使用 24kHz 单声道
func NewOpusEncoder(config *OpusEncoderConfig) (*OpusEncoder, error) {
	if config == nil {
		config = &OpusEncoderConfig{SampleRate: 24000, MaxChannels: 1}
	}

	encoder, err := opus.CreateOpusEncoder(&opus.OpusEncoderConfig{
		SampleRate:  config.SampleRate,
		MaxChannels: config.MaxChannels,
		Application: opus.AppVoIP,
	})
	if err != nil {
		return nil, fmt.Errorf("创建Opus编码器失败: %w", err)
	}

	return &OpusEncoder{encoder: encoder, config: config}, nil
}

// Encode 编码一帧PCM数据
func (e *OpusEncoder) Encode(pcm []byte) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	buf := make([]byte, opusMaxPacketSize)
	n, err := e.encoder.Encode(pcm, buf)
	if err != nil {
		return nil, fmt.Errorf("Opus编码失败: %w", err)
	}
	return buf[:n], nil
}

// Close 释放编码器资源
func (e *OpusEncoder) Close() error {
	if e.encoder == nil {
		return nil
	}
	err := e.encoder.Close()
	e.encoder = nil
	return err
}

// MP3ToPCM 将MP3数据解码为16bit小端PCM，返回PCM数据与采样率。
// go-mp3 固定输出双声道，此处同时下混为单声道。
func MP3ToPCM(data []byte) ([]byte, int, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("创建MP3解码器失败: %w", err)
	}

	stereo, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("解码MP3失败: %w", err)
	}

	mono := downmixToMono(stereo)
	return mono, decoder.SampleRate(), nil
}

// downmixToMono 双声道16bit PCM下混为单声道（取左右均值）
func downmixToMono(stereo []byte) []byte {
	sampleCount := len(stereo) / 4 // 每个立体声采样4字节
	mono := make([]byte, sampleCount*2)
	for i := 0; i < sampleCount; i++ {
		left := int16(binary.LittleEndian.Uint16(stereo[i*4:]))
		right := int16(binary.LittleEndian.Uint16(stereo[i*4+2:]))
		mixed := int16((int32(left) + int32(right)) / 2)
		binary.LittleEndian.PutUint16(mono[i*2:], uint16(mixed))
	}
	return mono
}

// PCMToOpusFrames 将单声道PCM切分为固定时长的帧并逐帧Opus编码，
// 末帧不足时补零。帧序即发送序。
func PCMToOpusFrames(pcm []byte, sampleRate, channels, frameDurationMs int) ([][]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("PCM数据为空")
	}
	if frameDurationMs <= 0 {
		frameDurationMs = 60
	}

	encoder, err := NewOpusEncoder(&OpusEncoderConfig{
		SampleRate:  sampleRate,
		MaxChannels: channels,
	})
	if err != nil {
		return nil, err
	}
	defer encoder.Close()

	samplesPerFrame := sampleRate * frameDurationMs / 1000
	bytesPerFrame := samplesPerFrame * channels * 2

	var frames [][]byte
	for offset := 0; offset < len(pcm); offset += bytesPerFrame {
		end := offset + bytesPerFrame
		chunk := make([]byte, bytesPerFrame)
		if end > len(pcm) {
			copy(chunk, pcm[offset:])
		} else {
			copy(chunk, pcm[offset:end])
		}

		encoded, err := encoder.Encode(chunk)
		if err != nil {
			return nil, err
		}
		if len(encoded) > 0 {
			frames = append(frames, encoded)
		}
	}

	return frames, nil
}
