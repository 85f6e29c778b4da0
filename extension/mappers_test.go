package extension

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/x"

	"github.com/lattixio/lattix/model/task"
	"github.com/lattixio/lattix/runtime/mapper"
	"github.com/lattixio/lattix/service/messaging"
)

type stubConfig struct {
	Priority int    `yaml:"priority" json:"priority"`
	Label    string `yaml:"label" json:"label"`
}

type stubMapper struct {
	name   string
	config stubConfig
}

func (s *stubMapper) Name() string { return s.name }

func (s *stubMapper) MapTask(ctx *mapper.Context, rt *mapper.Runtime, t *task.Task) (*task.Assignment, *task.Failure, error) {
	return &task.Assignment{TaskID: t.ID}, nil, nil
}

func (s *stubMapper) HandleMessage(ctx *mapper.Context, rt *mapper.Runtime, env messaging.Envelope) {}

func TestRegisterAndLookup(t *testing.T) {
	mappers := NewMappers()
	mp := &stubMapper{name: "stub"}
	mappers.Register(mp)

	assert.Equal(t, mp, mappers.Lookup("stub"))
	assert.Nil(t, mappers.Lookup("missing"))
	assert.Len(t, mappers.Instances(), 1)
}

func TestInstantiateConvertsConfig(t *testing.T) {
	mappers := NewMappers()
	mappers.RegisterType("stub", x.NewType(reflect.TypeOf(stubConfig{}), x.WithName("stubConfig")),
		func(config interface{}) (Mapper, error) {
			cfg := stubConfig{}
			if typed, ok := config.(*stubConfig); ok && typed != nil {
				cfg = *typed
			}
			return &stubMapper{name: "stub", config: cfg}, nil
		})

	mp, err := mappers.Instantiate("stub", map[string]interface{}{
		"priority": 7,
		"label":    "steal-half",
	})
	require.NoError(t, err)

	stub, ok := mp.(*stubMapper)
	require.True(t, ok)
	assert.Equal(t, 7, stub.config.Priority)
	assert.Equal(t, "steal-half", stub.config.Label)

	// Instantiate registers the instance too
	assert.Equal(t, mp, mappers.Lookup("stub"))

	_, err = mappers.Instantiate("unknown", nil)
	assert.Error(t, err)
}

func TestInstantiateWithoutConfigType(t *testing.T) {
	mappers := NewMappers()
	mappers.RegisterType("bare", nil, func(config interface{}) (Mapper, error) {
		assert.Nil(t, config)
		return &stubMapper{name: "bare"}, nil
	})

	mp, err := mappers.Instantiate("bare", nil)
	require.NoError(t, err)
	assert.Equal(t, "bare", mp.Name())
}
