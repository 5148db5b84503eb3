package main

import (
	"strings"
	"testing"
)

func TestStatsEmbeds(t *testing.T) {
	counts := []CategoryCount{
		{Category: CategoryBug, Count: 2},
		{Category: CategoryPraise, Count: 1},
	}
	channels := []ChannelStat{
		{ChannelName: "truth-engine", MessageCount: 3, UniqueAuthors: 2, AlertCount: 3},
	}

	embeds := statsEmbeds(counts, channels)
	if len(embeds) != 2 {
		t.Fatalf("expected summary and activity embeds, got %d", len(embeds))
	}
	if !strings.Contains(embeds[0].Title, "3 alerts") {
		t.Fatalf("unexpected summary title %q", embeds[0].Title)
	}
	if !strings.Contains(embeds[0].Description, "🐛 BUG: 2") {
		t.Fatalf("unexpected summary body %q", embeds[0].Description)
	}
	if !strings.Contains(embeds[1].Description, "#truth-engine: 3 messages, 2 authors, 3 alerts") {
		t.Fatalf("unexpected activity body %q", embeds[1].Description)
	}
}

func TestStatsEmbedsEmpty(t *testing.T) {
	embeds := statsEmbeds(nil, nil)
	if len(embeds) != 2 {
		t.Fatalf("expected 2 embeds, got %d", len(embeds))
	}
	if !strings.Contains(embeds[0].Description, "No alerts") {
		t.Fatalf("unexpected summary body %q", embeds[0].Description)
	}
	if !strings.Contains(embeds[1].Description, "No monitored channel activity") {
		t.Fatalf("unexpected activity body %q", embeds[1].Description)
	}
}
