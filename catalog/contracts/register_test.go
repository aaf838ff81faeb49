package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/coursecatalog/framework/events"
)

func TestRegisterAll(t *testing.T) {
	codec := events.NewCodec()
	RegisterAll(codec)
	assert.Len(t, codec.Types(), 31)
}

func TestLessonMediaChanged_Envelope(t *testing.T) {
	codec := events.NewCodec()
	RegisterAll(codec)

	prev := 60
	in := LessonMediaChanged{
		LessonEvent:      Lesson("c1", "m1", "l1"),
		VideoURL:         "https://cdn/v.m3u8",
		Duration:         90,
		PreviousDuration: &prev,
	}
	data, err := codec.Encode(in)
	require.NoError(t, err)

	out, err := codec.Decode(data, "")
	require.NoError(t, err)
	got, ok := out.(LessonMediaChanged)
	require.True(t, ok)
	assert.Equal(t, "c1", got.CourseID)
	assert.Equal(t, "l1", got.LessonID)
	assert.Equal(t, 90, got.Duration)
	require.NotNil(t, got.PreviousDuration)
	assert.Equal(t, 60, *got.PreviousDuration)
	assert.Equal(t, in.EventID(), got.EventID())
	assert.Equal(t, "c1", events.PartitionKeyOf(got))
}

func TestCreationEvents(t *testing.T) {
	var ev events.Event = ModuleCreated{ModuleEvent: Module("c1", "m1")}
	created, ok := ev.(events.Creation)
	require.True(t, ok)
	assert.Equal(t, "m1", created.CreatedID())

	ev = ModuleTitleChanged{ModuleEvent: Module("c1", "m1")}
	_, ok = ev.(events.Creation)
	assert.False(t, ok)
}
