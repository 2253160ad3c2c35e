package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope_Fields(t *testing.T) {
	payload := map[string]interface{}{"cell": "60,60,60", "speed": 42.5}
	env, err := NewEnvelope("voxel-sim", "world.terrain_destroyed", 3, payload)
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID, "ID должен быть заполнен")
	assert.Equal(t, "voxel-sim", env.Source)
	assert.Equal(t, "world.terrain_destroyed", env.EventType)
	assert.Equal(t, 3, env.Priority)
	assert.Equal(t, 1, env.Version)
	assert.False(t, env.Timestamp.IsZero(), "Timestamp должен быть установлен")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Payload, &decoded))
	assert.Equal(t, "60,60,60", decoded["cell"], "полезная нагрузка должна пережить сериализацию")
}

func TestNewEnvelope_UnmarshalablePayload(t *testing.T) {
	_, err := NewEnvelope("voxel-sim", "world.bad", 1, make(chan int))
	assert.Error(t, err, "несериализуемая нагрузка должна вернуть ошибку")
}

func TestMemoryBus_DeliverToSubscriber(t *testing.T) {
	bus := NewMemoryBus(16)

	received := make(chan *Envelope, 1)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		received <- ev
	})
	require.NoError(t, err)

	env, err := NewEnvelope("test", "world.player_joined", 4, map[string]string{"id": "p1"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), env))

	select {
	case got := <-received:
		assert.Equal(t, env.ID, got.ID, "подписчик должен получить то же событие")
	case <-time.After(2 * time.Second):
		t.Fatal("событие не доставлено подписчику")
	}
}

func TestMemoryBus_FilterTypes(t *testing.T) {
	bus := NewMemoryBus(16)

	received := make(chan string, 4)
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{"world.body_settled"}}, func(ctx context.Context, ev *Envelope) {
		received <- ev.EventType
	})
	require.NoError(t, err)

	for _, typ := range []string{"world.player_joined", "world.body_settled", "world.terrain_destroyed"} {
		env, err := NewEnvelope("test", typ, 4, struct{}{})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), env))
	}

	select {
	case typ := <-received:
		assert.Equal(t, "world.body_settled", typ)
	case <-time.After(2 * time.Second):
		t.Fatal("отфильтрованное событие не доставлено")
	}

	// Остальные типы не должны пройти фильтр
	select {
	case typ := <-received:
		t.Fatalf("получено лишнее событие: %s", typ)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(16)

	received := make(chan struct{}, 1)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(ctx context.Context, ev *Envelope) {
		received <- struct{}{}
	})
	require.NoError(t, err)
	sub.Unsubscribe()

	env, err := NewEnvelope("test", "world.player_left", 4, struct{}{})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), env))

	select {
	case <-received:
		t.Fatal("после отписки события приходить не должны")
	case <-time.After(100 * time.Millisecond):
	}
}

// fullBus возвращает шину с заполненным буфером и без цикла доставки,
// чтобы поведение при переполнении проверялось детерминированно.
func fullBus(t *testing.T) *memoryBus {
	t.Helper()
	mb := &memoryBus{
		subscribers: make(map[int]subscriber),
		buffer:      make(chan *Envelope, 1),
	}
	env, err := NewEnvelope("test", "world.filler", 4, struct{}{})
	require.NoError(t, err)
	require.NoError(t, mb.Publish(context.Background(), env))
	return mb
}

func TestMemoryBus_DropsLowPriorityWhenFull(t *testing.T) {
	mb := fullBus(t)

	env, err := NewEnvelope("test", "world.body_settled", 1, struct{}{})
	require.NoError(t, err)
	require.NoError(t, mb.Publish(context.Background(), env), "низкий приоритет отбрасывается без ошибки")

	stats := mb.Metrics()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(1), stats.Dropped, "событие должно быть учтено как отброшенное")
	assert.Equal(t, 1, stats.InFlight, "буфер не должен получить новое событие")
}

func TestMemoryBus_HighPriorityWaitsForContext(t *testing.T) {
	mb := fullBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env, err := NewEnvelope("test", "world.critical", highPriority, struct{}{})
	require.NoError(t, err)
	err = mb.Publish(ctx, env)
	assert.ErrorIs(t, err, context.Canceled, "высокий приоритет ждёт места до отмены контекста")

	stats := mb.Metrics()
	assert.Equal(t, uint64(0), stats.Dropped, "высокий приоритет не отбрасывается молча")
}

func TestMatchFilter(t *testing.T) {
	env := &Envelope{EventType: "world.player_joined", Source: "voxel-sim"}

	assert.True(t, matchFilter(env, Filter{}))
	assert.True(t, matchFilter(env, Filter{Types: []string{"world.player_joined"}}))
	assert.True(t, matchFilter(env, Filter{Sources: []string{"voxel-sim"}}))
	assert.False(t, matchFilter(env, Filter{Types: []string{"world.player_left"}}))
	assert.False(t, matchFilter(env, Filter{Sources: []string{"gateway"}}))
	assert.False(t, matchFilter(env, Filter{
		Types:   []string{"world.player_joined"},
		Sources: []string{"gateway"},
	}), "должны совпасть и тип, и источник")
}
