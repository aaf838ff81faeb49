// Copyright 2024 Potter Framework Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/akriventsev/coursecatalog/framework/core"
)

// HealthCheck интерфейс для health checks
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthCheckResult результат health check
type HealthCheckResult struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
}

// CheckResult результат отдельной проверки
type CheckResult struct {
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// HealthManager реестр health и readiness проверок
type HealthManager struct {
	timeout         time.Duration
	healthChecks    []HealthCheck
	readinessChecks []HealthCheck
	mu              sync.RWMutex
}

// NewHealthManager создает новый HealthManager
func NewHealthManager(timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthManager{timeout: timeout}
}

// RegisterHealthCheck регистрирует health check
func (hm *HealthManager) RegisterHealthCheck(check HealthCheck) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.healthChecks = append(hm.healthChecks, check)
}

// RegisterReadinessCheck регистрирует readiness check
func (hm *HealthManager) RegisterReadinessCheck(check HealthCheck) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.readinessChecks = append(hm.readinessChecks, check)
}

// Run выполняет health checks
func (hm *HealthManager) Run(ctx context.Context) HealthCheckResult {
	hm.mu.RLock()
	checks := hm.healthChecks
	hm.mu.RUnlock()
	return runChecks(ctx, checks)
}

// Ready выполняет readiness checks
func (hm *HealthManager) Ready(ctx context.Context) HealthCheckResult {
	hm.mu.RLock()
	checks := hm.readinessChecks
	hm.mu.RUnlock()
	return runChecks(ctx, checks)
}

func runChecks(ctx context.Context, checks []HealthCheck) HealthCheckResult {
	result := HealthCheckResult{
		Status:    "healthy",
		Checks:    make(map[string]CheckResult),
		Timestamp: time.Now(),
	}

	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)

		cr := CheckResult{Status: "healthy", Duration: time.Since(start)}
		if err != nil {
			cr.Status = "unhealthy"
			cr.Message = err.Error()
			result.Status = "unhealthy"
		}
		result.Checks[check.Name()] = cr
	}
	return result
}

// HealthCheckHandler возвращает Gin handler для health check
func (hm *HealthManager) HealthCheckHandler() gin.HandlerFunc {
	return hm.handler(hm.Run)
}

// ReadinessCheckHandler возвращает Gin handler для readiness check
func (hm *HealthManager) ReadinessCheckHandler() gin.HandlerFunc {
	return hm.handler(hm.Ready)
}

func (hm *HealthManager) handler(run func(context.Context) HealthCheckResult) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), hm.timeout)
		defer cancel()

		result := run(ctx)
		if result.Status != "healthy" {
			c.JSON(http.StatusServiceUnavailable, result)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// ComponentHealthCheck проверка компонента с HealthCheck
type ComponentHealthCheck struct {
	name      string
	component core.HealthCheckable
}

// NewComponentHealthCheck создает проверку для компонента
func NewComponentHealthCheck(name string, component core.HealthCheckable) *ComponentHealthCheck {
	return &ComponentHealthCheck{name: name, component: component}
}

func (h *ComponentHealthCheck) Name() string {
	return h.name
}

func (h *ComponentHealthCheck) Check(ctx context.Context) error {
	return h.component.HealthCheck(ctx)
}

// LifecycleCheck проверка, что компонент запущен
type LifecycleCheck struct {
	name      string
	component core.Lifecycle
}

// NewLifecycleCheck создает проверку состояния компонента
func NewLifecycleCheck(name string, component core.Lifecycle) *LifecycleCheck {
	return &LifecycleCheck{name: name, component: component}
}

func (h *LifecycleCheck) Name() string {
	return h.name
}

func (h *LifecycleCheck) Check(ctx context.Context) error {
	if !h.component.IsRunning() {
		return core.NewError(core.ErrInitializationFailed, h.name+" is not running")
	}
	return nil
}
