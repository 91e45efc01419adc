package records

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryReusesControllerPerSessionScreen(t *testing.T) {
	reg := NewRegistry(16, time.Minute)
	created := 0
	newAPI := func() API {
		created++
		return newFakeAPI()
	}

	a := reg.Controller("sess-1", ScreenRecords, DefaultPageSize, newAPI)
	b := reg.Controller("sess-1", ScreenRecords, DefaultPageSize, newAPI)
	c := reg.Controller("sess-1", ScreenPayouts, 50, newAPI)
	d := reg.Controller("sess-2", ScreenRecords, DefaultPageSize, newAPI)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.NotSame(t, a, d)
	assert.Equal(t, 3, created)
	assert.Equal(t, 50, c.PageSize())
}

func TestRegistryForget(t *testing.T) {
	reg := NewRegistry(16, time.Minute)
	newAPI := func() API { return newFakeAPI() }
	reg.Controller("sess-1", ScreenRecords, DefaultPageSize, newAPI)
	reg.Controller("sess-1", ScreenPayouts, DefaultPageSize, newAPI)
	reg.Controller("sess-2", ScreenRecords, DefaultPageSize, newAPI)

	reg.Forget("sess-1")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryExpiresIdleControllers(t *testing.T) {
	reg := NewRegistry(16, 20*time.Millisecond)
	newAPI := func() API { return newFakeAPI() }
	first := reg.Controller("sess-1", ScreenRecords, DefaultPageSize, newAPI)

	assert.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 10*time.Millisecond)
	second := reg.Controller("sess-1", ScreenRecords, DefaultPageSize, newAPI)
	assert.NotSame(t, first, second)
}
