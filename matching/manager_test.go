package matching

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/kdb/matching/option"
)

func TestManager_IsExcluded(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		size     int64
		options  []option.Option
		excluded bool
	}{
		{
			name:     "default includes fna",
			path:     "/cache/refseq/bacteria/GCF_000005845.2/GCF_000005845.2_genomic.fna",
			size:     10,
			excluded: false,
		},
		{
			name:     "file url",
			path:     "file:///cache/refseq/viral/x.fna",
			size:     10,
			excluded: false,
		},
		{
			name:     "compressed archive",
			path:     "/cache/refseq/bacteria/x.fna.gz",
			size:     10,
			excluded: true,
		},
		{
			name:     "highway sidecar",
			path:     "/cache/refseq/bacteria/x.fna.highway256",
			size:     10,
			excluded: true,
		},
		{
			name:     "sha sidecar",
			path:     "/cache/refseq/bacteria/x.fna.sha256",
			size:     10,
			excluded: true,
		},
		{
			name:     "other extension not included by default",
			path:     "/data/x.fasta",
			size:     10,
			excluded: true,
		},
		{
			name:     "extra inclusion",
			path:     "/data/x.fasta",
			size:     10,
			options:  []option.Option{option.WithInclusionPatterns("*.fna", "*.fasta")},
			excluded: false,
		},
		{
			name:     "directory exclusion",
			path:     "/data/partial/x.fna",
			size:     10,
			options:  []option.Option{option.WithExclusionPatterns("partial/")},
			excluded: true,
		},
		{
			name:     "directory exclusion does not match prefix",
			path:     "/data/nonpartial/x.fna",
			size:     10,
			options:  []option.Option{option.WithExclusionPatterns("partial/")},
			excluded: false,
		},
		{
			name:     "below minimum size",
			path:     "/data/x.fna",
			size:     0,
			options:  []option.Option{option.WithMinFileSize(1)},
			excluded: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.options...)
			assert.Equal(t, tt.excluded, m.IsExcluded(tt.path, tt.size), tt.path)
		})
	}
}

func TestManager_IgnoreFile(t *testing.T) {
	m := New(option.WithIgnoreFile(strings.NewReader(`
# plasmids handled separately
plasmid/
GCF_000001405*
`)))
	assert.True(t, m.IsExcluded("/refseq/plasmid/a.fna", 1))
	assert.True(t, m.IsExcluded("/refseq/human/GCF_000001405.40_genomic.fna", 1))
	assert.False(t, m.IsExcluded("/refseq/human/GCF_009914755.1_genomic.fna", 1))
	assert.True(t, m.IsExcludedDir("/refseq/plasmid"))
	assert.False(t, m.IsExcludedDir("/refseq/viral"))
}
