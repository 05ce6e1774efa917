package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPPoolSize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		cores int
		want  int
	}{
		{"single core", 1, 3},
		{"quad core", 4, 9},
		{"eight cores", 8, 17},
		{"undetectable", 0, 1},
		{"negative (bad probe)", -1, 1},
		{"many cores", 64, 129},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, HTTPPoolSize(tc.cores))
		})
	}
}

func TestTaskConcurrency(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 6, TaskConcurrency("blog_generation"))
	assert.Equal(t, 4, TaskConcurrency("image_generation"))
	assert.Equal(t, 4, TaskConcurrency("default"))
	assert.Equal(t, 4, TaskConcurrency("anything_else"))
}

func TestDetectCores(t *testing.T) {
	t.Parallel()

	assert.GreaterOrEqual(t, DetectCores(), 1)
}
