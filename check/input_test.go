package check_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mailverify/check"
	"github.com/optimode/mailverify/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"plain", "user@example.com", "user@example.com", true},
		{"surrounding whitespace", " \tuser@example.com\n", "user@example.com", true},
		{"no at sign is not an input problem", "userexample.com", "userexample.com", true},
		{"empty", "", "", false},
		{"blank", "   ", "", false},
		{"comma list", "a@example.com,b@example.com", "", false},
		{"semicolon list", "a@example.com;b@example.com", "", false},
		{"trailing comma", "a@example.com,", "", false},
		{"two tokens", "a@example.com b@example.com", "", false},
		{"display name", "Bob bob@example.com", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := check.Normalize(tt.raw)
			if !tt.wantOK {
				require.Error(t, err)
				var se *types.StageError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, types.StageInput, se.Stage)
				assert.Equal(t, types.KindInput, se.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInputNormalizer_SetsAddress(t *testing.T) {
	st := &check.State{Raw: "  user@example.com "}
	c := check.NewInputNormalizer()

	_, err := c.Check(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", st.Address)
	assert.Equal(t, types.StageInput, c.Name())
}
