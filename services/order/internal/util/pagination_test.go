package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                 string
		page, size           int
		wantPage, wantOffset int
		wantLimit            int
	}{
		{name: "defaults", page: 0, size: 0, wantPage: 1, wantOffset: 0, wantLimit: DefaultPageSize},
		{name: "third page", page: 3, size: 20, wantPage: 3, wantOffset: 40, wantLimit: 20},
		{name: "clamped size", page: 2, size: 1000, wantPage: 2, wantOffset: MaxPageSize, wantLimit: MaxPageSize},
		{name: "negative page", page: -4, size: 5, wantPage: 1, wantOffset: 0, wantLimit: 5},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, off, lim := Calculate(tt.page, tt.size)
			assert.Equal(t, tt.wantPage, p)
			assert.Equal(t, tt.wantOffset, off)
			assert.Equal(t, tt.wantLimit, lim)
		})
	}
}

func TestParseIntDefaultAndTotalPages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5, ParseIntDefault("5", 1))
	assert.Equal(t, 1, ParseIntDefault("five", 1))
	assert.Equal(t, 1, ParseIntDefault("", 1))

	assert.EqualValues(t, 0, TotalPages(0, 10))
	assert.EqualValues(t, 1, TotalPages(10, 10))
	assert.EqualValues(t, 2, TotalPages(11, 10))
	assert.EqualValues(t, 0, TotalPages(11, 0))
}
