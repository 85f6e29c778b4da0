package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnvExpr(t *testing.T) {
	t.Setenv("NODE_KIND", "framebuffer")
	t.Setenv("NODE_ID", "3")

	testCases := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "no expression", input: "plain text", expect: "plain text"},
		{name: "single", input: "kind: ${env.NODE_KIND}", expect: "kind: framebuffer"},
		{name: "multiple", input: "${env.NODE_ID}-${env.NODE_KIND}", expect: "3-framebuffer"},
		{name: "unset variable", input: "v=${env.MISSING_VAR_42}", expect: "v="},
		{name: "unterminated", input: "v=${env.NODE_ID", expect: "v=${env.NODE_ID"},
		{name: "invalid key", input: "${env.a-b} ${env.NODE_ID}", expect: "${env.a-b} 3"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expect, expandEnvExpr(tc.input), tc.name)
	}
}
