package commands

import (
	"fmt"
	"log/slog"

	"github.com/jo-hoe/ecotrail/internal/backend/commandstructure"
)

// JpegEncodeParams represents typed parameters for the jpeg encode command
type JpegEncodeParams struct {
	Quality int
}

func NewJpegEncodeParamsFromMap(params map[string]any) (*JpegEncodeParams, error) {
	quality := commandstructure.GetIntParam(params, "quality", DefaultJPEGQuality)
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("quality must be within 1..100, got %d", quality)
	}
	return &JpegEncodeParams{Quality: quality}, nil
}

// JpegEncodeCommand re-encodes any supported raster image as JPEG.
type JpegEncodeCommand struct {
	name   string
	params *JpegEncodeParams
}

func NewJpegEncodeCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewJpegEncodeParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &JpegEncodeCommand{
		name:   "JpegEncodeCommand",
		params: typedParams,
	}, nil
}

func (c *JpegEncodeCommand) Name() string {
	return c.name
}

func (c *JpegEncodeCommand) Execute(imageData []byte) ([]byte, error) {
	img, format, err := decodeImage(imageData)
	if err != nil {
		slog.Error("JpegEncodeCommand: failed to decode image", "error", err)
		return nil, err
	}

	out, err := EncodeJPEG(img, c.params.Quality)
	if err != nil {
		slog.Error("JpegEncodeCommand: failed to encode image", "error", err)
		return nil, err
	}

	slog.Debug("JpegEncodeCommand: conversion complete",
		"source_format", format,
		"quality", c.params.Quality,
		"output_size_bytes", len(out))
	return out, nil
}

func (c *JpegEncodeCommand) GetQuality() int {
	return c.params.Quality
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("JpegEncodeCommand", NewJpegEncodeCommand); err != nil {
		panic(fmt.Sprintf("failed to register JpegEncodeCommand: %v", err))
	}
}
