//go:build silero

package main

import (
	"github.com/MrWong99/mockinterview/internal/config"
	"github.com/MrWong99/mockinterview/pkg/provider/vad"
	"github.com/MrWong99/mockinterview/pkg/provider/vad/silero"
)

func init() {
	optionalProviders = append(optionalProviders, func(reg *config.Registry) {
		reg.RegisterVAD("silero", func(entry config.ProviderEntry) (vad.Engine, error) {
			modelPath := entry.Model
			if modelPath == "" {
				modelPath = optString(entry.Options, "model_path")
			}
			e, err := silero.New(modelPath, optInt(entry.Options, "min_silence_ms"), optInt(entry.Options, "speech_pad_ms"))
			if err != nil {
				return nil, err
			}
			return e, nil
		})
	})
}
