package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/revu/internal/domain"
	"github.com/utafrali/revu/internal/service"
)

func TestSyncOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    service.SyncOptions
		wantErr bool
	}{
		{
			name: "defaults",
			want: service.SyncOptions{Source: service.SyncSourceAmazon},
		},
		{
			name: "all flags",
			args: []string{"--clean", "--limit", "5", "--source", "ALL", "--seed-if-empty"},
			want: service.SyncOptions{Clean: true, Limit: 5, Source: service.SyncSourceAll, SeedIfEmpty: true},
		},
		{
			name:    "unknown source",
			args:    []string{"--source", "ebay"},
			wantErr: true,
		},
		{
			name:    "zero limit",
			args:    []string{"--limit", "0"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd := newRootCommand()
			require.NoError(t, cmd.ParseFlags(tc.args))

			got, err := syncOptions(cmd)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &service.SyncReport{
		Queries:       56,
		FailedQueries: 2,
		Created:       40,
		Updated:       3,
		Skipped:       1,
		TotalProducts: 43,
		Categories:    []domain.Category{{Name: "Electronics", ProductCount: 12}},
		TopRated:      []domain.Product{{Name: "Acme Kettle", Rating: 9.4}},
		Usage: map[string]domain.UsageStats{
			"serpapi": domain.NewUsageStats(58, 250),
			"bestbuy": domain.NewUsageStats(0, 50000),
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Queries: 56 (2 failed)")
	assert.Contains(t, out, "Created: 40  Updated: 3  Skipped: 1")
	assert.Contains(t, out, "9.4/10  Acme Kettle")
	assert.Contains(t, out, "serpapi  58/250 used, 192 remaining")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("bestbuy")), bytes.Index(buf.Bytes(), []byte("serpapi")))
}

func TestPrintReport_SeedSkipped(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &service.SyncReport{SeedSkipped: true, TotalProducts: 7})
	assert.Equal(t, "Products already present, seed skipped.\n", buf.String())
}
