package chunk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownChunker_SectionsAndCodeBlocks(t *testing.T) {
	content := `---
title: Example
---

# Introduction

This document explains a feature in enough words to clear the minimum chunk size threshold that the policy enforces.

## Usage

Here is a code sample that should become its own chunk because it is a fenced code block.

` + "```go\nfunc Example() {\n\tfmt.Println(\"hello from inside a fenced code block that is reasonably sized\")\n}\n```" + `

- item one in a list that is long enough to pass the minimum chunk size on its own merits
- item two continuing the same list with more padding text to reach the size floor
`

	c := NewMarkdownChunker()
	defer c.Close()

	chunks, err := c.Chunk(context.Background(), &FileInput{
		Path:     "doc.md",
		Content:  []byte(content),
		Language: "markdown",
		ModTime:  time.Now(),
		Size:     int64(len(content)),
	})

	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var sawCodeBlock, sawList bool
	for _, ch := range chunks {
		switch ch.ChunkType {
		case TypeCodeBlock:
			sawCodeBlock = true
			assert.Contains(t, ch.Content, "```")
		case TypeList:
			sawList = true
		}
		assert.Equal(t, "markdown", ch.Language)
	}
	assert.True(t, sawCodeBlock)
	assert.True(t, sawList)
}

func TestMarkdownChunker_EmptyContent(t *testing.T) {
	c := NewMarkdownChunker()
	defer c.Close()

	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "empty.md", Content: []byte("   \n")})
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestMarkdownChunker_HeaderPath(t *testing.T) {
	content := `# Top

## Child

A paragraph under a nested header that is long enough to clear the minimum chunk size threshold of one hundred characters.
`
	c := NewMarkdownChunker()
	defer c.Close()

	chunks, err := c.Chunk(context.Background(), &FileInput{Path: "nested.md", Content: []byte(content)})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	found := false
	for _, ch := range chunks {
		if ch.ModuleName == "Top > Child" {
			found = true
		}
	}
	assert.True(t, found)
}
