package domain_test

import (
	"testing"

	"github.com/aretw0/argview/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		assert func(t *testing.T, msg *domain.Message)
	}{
		{
			name:  "add",
			input: `{"method":"add","parent":"root","child":{"id":"a"}}`,
			assert: func(t *testing.T, msg *domain.Message) {
				assert.Equal(t, domain.MethodAdd, msg.Method)
				assert.Equal(t, domain.NodeID("root"), msg.Parent)
				require.NotNil(t, msg.Child)
				assert.Equal(t, domain.NodeID("a"), msg.Child.ID)
			},
		},
		{
			name:  "delete with numeric ids",
			input: `{"method":"delete","parent":1,"child":2}`,
			assert: func(t *testing.T, msg *domain.Message) {
				assert.Equal(t, domain.MethodDelete, msg.Method)
				assert.Equal(t, domain.NodeID("1"), msg.Parent)
				assert.Equal(t, domain.NodeID("2"), msg.ChildID)
			},
		},
		{
			name:  "create with object",
			input: `{"method":"create","node":{"id":"root","children":[{"id":"x"}]}}`,
			assert: func(t *testing.T, msg *domain.Message) {
				require.NotNil(t, msg.Root)
				assert.Equal(t, domain.NodeID("root"), msg.Root.ID)
				assert.Len(t, msg.Root.Children, 1)
			},
		},
		{
			name:  "create with array takes the first element",
			input: `{"method":"create","node":[{"id":"first"},{"id":"second"}]}`,
			assert: func(t *testing.T, msg *domain.Message) {
				require.NotNil(t, msg.Root)
				assert.Equal(t, domain.NodeID("first"), msg.Root.ID)
			},
		},
		{
			name:  "create with empty array is an empty tree",
			input: `{"method":"create","node":[]}`,
			assert: func(t *testing.T, msg *domain.Message) {
				assert.Equal(t, domain.MethodCreate, msg.Method)
				assert.Nil(t, msg.Root)
			},
		},
		{
			name:  "wait",
			input: `{"method":"wait"}`,
			assert: func(t *testing.T, msg *domain.Message) {
				assert.Equal(t, domain.MethodWait, msg.Method)
			},
		},
		{
			name:  "string encoded payload",
			input: `"{\"method\":\"add\",\"parent\":\"r\",\"child\":{\"id\":\"c\"}}"`,
			assert: func(t *testing.T, msg *domain.Message) {
				assert.Equal(t, domain.MethodAdd, msg.Method)
				assert.Equal(t, domain.NodeID("r"), msg.Parent)
			},
		},
		{
			name:  "unknown method is accepted",
			input: `{"method":"rename","id":"a"}`,
			assert: func(t *testing.T, msg *domain.Message) {
				assert.Equal(t, domain.Method("rename"), msg.Method)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := domain.DecodeMessage([]byte(tt.input))
			require.NoError(t, err)
			tt.assert(t, msg)
		})
	}
}

func TestDecodeMessage_Malformed(t *testing.T) {
	inputs := map[string]string{
		"not json":          `{method`,
		"array payload":     `[1,2,3]`,
		"empty":             ``,
		"add without child": `{"method":"add","parent":"root"}`,
		"add child scalar":  `{"method":"add","parent":"root","child":"a"}`,
		"delete no parent":  `{"method":"delete","child":"a"}`,
		"create no node":    `{"method":"create"}`,
		"create null node":  `{"method":"create","node":null}`,
		"bad string":        `"{not json}"`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := domain.DecodeMessage([]byte(input))
			assert.ErrorIs(t, err, domain.ErrMalformedMessage)
		})
	}
}

func TestMessageError(t *testing.T) {
	err := &domain.MessageError{Seq: 4, Method: domain.MethodAdd, Err: domain.ErrParentNotFound}
	assert.ErrorIs(t, err, domain.ErrParentNotFound)
	assert.Contains(t, err.Error(), "add")
}
