package generators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestRenderPDF(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewReportService(logger)

	tests := []struct {
		name     string
		markdown string
		title    string
	}{
		{
			name:     "basic summary",
			markdown: "# Photosynthesis\n\nPlants convert light into chemical energy.\n\n- Light reactions\n- Calvin cycle",
			title:    "Photosynthesis Notes",
		},
		{
			name:     "empty markdown",
			markdown: "",
			title:    "Empty",
		},
		{
			name: "summary with table and code",
			markdown: `# Overview

Key stages:

| Stage | Location |
|-------|----------|
| Light | Thylakoid|
| Dark  | Stroma   |

` + "```\n6CO2 + 6H2O -> C6H12O6 + 6O2\n```",
			title: "Stages",
		},
		{
			name:     "bold and italic",
			markdown: "Normal **Bold** *Italic* ***BoldItalic***",
			title:    "Styling",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdfBytes, err := service.RenderPDF(tt.markdown, tt.title)
			assert.NoError(t, err)
			assert.NotEmpty(t, pdfBytes)
			assert.Equal(t, "%PDF", string(pdfBytes[:4]))
		})
	}
}

func TestRenderPDF_LongDocument(t *testing.T) {
	logger := arbor.NewLogger()
	service := NewReportService(logger)

	markdown := "# Long Summary\n\n"
	for i := 0; i < 200; i++ {
		markdown += "This paragraph pads the document far past a single page so the auto page break gets exercised.\n\n"
	}

	pdfBytes, err := service.RenderPDF(markdown, "Long Summary")
	assert.NoError(t, err)
	assert.Greater(t, len(pdfBytes), 1000)
	assert.Equal(t, "%PDF", string(pdfBytes[:4]))
}
