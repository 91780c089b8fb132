package render

import (
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/common"
)

func TestCloseBeforeFirstRenderIsNoop(t *testing.T) {
	s := NewService(common.RenderConfig{PoolSize: 2}, "test-agent", arbor.NewLogger())
	if err := s.Close(); err != nil {
		t.Errorf("Close() on unused service returned %v", err)
	}
	// Safe to call twice
	if err := s.Close(); err != nil {
		t.Errorf("second Close() returned %v", err)
	}
}

func TestTimeoutDefaults(t *testing.T) {
	s := NewService(common.RenderConfig{}, "test-agent", arbor.NewLogger())
	if got := s.timeout(); got != 45*time.Second {
		t.Errorf("timeout() = %v, want 45s default", got)
	}

	s = NewService(common.RenderConfig{Timeout: 10 * time.Second}, "test-agent", arbor.NewLogger())
	if got := s.timeout(); got != 10*time.Second {
		t.Errorf("timeout() = %v, want configured 10s", got)
	}
}
