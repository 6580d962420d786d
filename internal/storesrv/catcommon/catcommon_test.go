package catcommon

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Productivity", "productivity"},
		{"Developer Tools", "developer-tools"},
		{"developer-tools", "developer-tools"},
		{"  Café & Crème ", "cafe-creme"},
		{"AI / ML", "ai-ml"},
		{"---", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := HashSecret("s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))

	ok, err := VerifySecret("s3cret", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifySecret("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := HashSecret("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts should differ")

	_, err = VerifySecret("s3cret", "$bcrypt$nope")
	assert.Error(t, err)
}

func TestSecretEquals(t *testing.T) {
	assert.True(t, SecretEquals("abc", "abc"))
	assert.False(t, SecretEquals("abc", "abd"))
	assert.False(t, SecretEquals("abc", ""))
}

func TestAdminContext(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsAdminFromContext(ctx))
	assert.True(t, IsAdminFromContext(SetAdminInContext(ctx)))
	assert.True(t, TestContextFromContext(SetTestContext(ctx, true)))
}
