package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/relaychat/internal/auth"
)

func TestRun(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	req.NoError(run(strings.NewReader("hunter2\n"), &out))

	ok, err := auth.ComparePassword("hunter2", strings.TrimSpace(out.String()))
	req.NoError(err)
	req.True(ok)

	req.Error(run(strings.NewReader("\n"), &out))
}
