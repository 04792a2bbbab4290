package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophauth/internal/iocli"
)

type fakeSuperuserService struct {
	err      error
	password string
	created  bool
}

func (f *fakeSuperuserService) EnsureSuperuser(_ context.Context, password string) (bool, error) {
	f.password = password
	return f.created, f.err
}

func TestSetPassword(t *testing.T) {
	tests := []struct {
		serviceErr  error
		name        string
		input       string
		expectedErr error
		expectedOut string
		created     bool
		wantErr     bool
	}{
		{name: "created", input: "s3cret!\ns3cret!\n", created: true, expectedOut: `Superuser "superuser" created`},
		{name: "updated", input: "s3cret!\ns3cret!\n", expectedOut: `Password of "superuser" updated`},
		{name: "mismatch", input: "s3cret!\nother!!\n", expectedErr: errPasswordMismatch, wantErr: true},
		{name: "too short", input: "abc\nabc\n", wantErr: true},
		{name: "no repeat", input: "s3cret!\n", expectedErr: io.EOF, wantErr: true},
		{name: "service failure", input: "s3cret!\ns3cret!\n", serviceErr: errors.New("database is locked"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeSuperuserService{created: tt.created, err: tt.serviceErr}
			var out bytes.Buffer
			console := iocli.NewConsole(strings.NewReader(tt.input), &out)

			err := setPassword(context.Background(), svc, console)

			if tt.wantErr {
				require.Error(t, err)
				if tt.expectedErr != nil {
					assert.ErrorIs(t, err, tt.expectedErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "s3cret!", svc.password)
			assert.Contains(t, out.String(), tt.expectedOut)
		})
	}
}

func TestSetPassword_NotCalledOnMismatch(t *testing.T) {
	svc := &fakeSuperuserService{}
	console := iocli.NewConsole(strings.NewReader("s3cret!\ns3cret?\n"), io.Discard)

	err := setPassword(context.Background(), svc, console)

	assert.ErrorIs(t, err, errPasswordMismatch)
	assert.Empty(t, svc.password)
}
