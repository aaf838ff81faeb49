// Package reconcile пересчитывает агрегаты курсов по дереву CourseStructure
// и исправляет строки, разошедшиеся с ним.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/akriventsev/coursecatalog/catalog/model"
	"github.com/akriventsev/coursecatalog/framework/logger"
	"github.com/akriventsev/coursecatalog/framework/metrics"
	"github.com/akriventsev/coursecatalog/framework/readmodel"
)

// Report итог прохода
type Report struct {
	Courses         int           `json:"courses"`
	Modules         int           `json:"modules"`
	StatsRepaired   int           `json:"statsRepaired"`
	ModulesRepaired int           `json:"modulesRepaired"`
	Rows            int           `json:"rows"`
	Duration        time.Duration `json:"duration"`
}

// conflictRetries повторы курса, если его строки параллельно изменил проектор
const conflictRetries = 3

// Reconciler восстанавливает счетчики. Счетчик записей на курс не
// восстанавливается: дерево курса его не содержит.
type Reconciler struct {
	store   readmodel.Store
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New создает Reconciler; log и m могут быть nil
func New(store readmodel.Store, log *logger.Logger, m *metrics.Metrics) *Reconciler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Reconciler{
		store:   store,
		log:     log.With("component", "reconciler"),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run выполняет один проход по всем курсам. Каждый курс фиксируется
// отдельно; ошибка прерывает проход.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	structures, err := readmodel.Of[model.CourseStructure](readmodel.NewSession(r.store), model.CourseStructuresCollection).FindAll(ctx)
	if err != nil {
		return report, err
	}

	for _, structure := range structures {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		delta, err := r.retryCourse(ctx, structure)
		if err != nil {
			return report, fmt.Errorf("reconcile course %s: %w", structure.CourseID, err)
		}
		report.add(delta)
	}

	report.Duration = time.Since(start)
	r.log.Info("reconcile finished",
		"courses", report.Courses,
		"stats_repaired", report.StatsRepaired,
		"modules_repaired", report.ModulesRepaired,
		"duration", report.Duration,
	)
	return report, nil
}

func (r *Report) add(o Report) {
	r.Courses += o.Courses
	r.Modules += o.Modules
	r.StatsRepaired += o.StatsRepaired
	r.ModulesRepaired += o.ModulesRepaired
	r.Rows += o.Rows
}

// retryCourse сверяет курс; при конфликте версии дерево и счетчики
// перечитываются заново.
func (r *Reconciler) retryCourse(ctx context.Context, structure *model.CourseStructure) (Report, error) {
	for attempt := 0; ; attempt++ {
		var delta Report
		err := r.course(ctx, structure, &delta)
		if err == nil {
			for i := 0; i < delta.ModulesRepaired; i++ {
				r.metrics.RecordRepair(ctx, model.ModulesCollection)
			}
			for i := 0; i < delta.StatsRepaired; i++ {
				r.metrics.RecordRepair(ctx, model.CourseStatsCollection)
			}
			return delta, nil
		}
		if !readmodel.IsConflict(err) || attempt >= conflictRetries {
			return Report{}, err
		}
		r.log.Debug("write conflict, retrying course", "course_id", structure.CourseID, "attempt", attempt+1)

		fresh, err := readmodel.Of[model.CourseStructure](readmodel.NewSession(r.store), model.CourseStructuresCollection).FindByID(ctx, structure.CourseID)
		if err != nil {
			return Report{}, err
		}
		if fresh == nil {
			return Report{}, nil
		}
		structure = fresh
	}
}

func (r *Reconciler) course(ctx context.Context, structure *model.CourseStructure, report *Report) error {
	s := readmodel.NewSession(r.store)
	report.Courses++

	var lessons, duration int
	for _, m := range structure.Modules {
		report.Modules++
		lessons += len(m.Lessons)
		duration += m.TotalDuration()

		row, err := readmodel.Of[model.Module](s, model.ModulesCollection).FindByID(ctx, m.ModuleID)
		if err != nil {
			return err
		}
		if row == nil {
			continue
		}
		if row.LessonCount != len(m.Lessons) || row.TotalDurationSeconds != m.TotalDuration() {
			r.log.Warn("module drift repaired",
				"module_id", m.ModuleID,
				"lesson_count", row.LessonCount,
				"expected_lesson_count", len(m.Lessons),
				"total_duration", row.TotalDurationSeconds,
				"expected_total_duration", m.TotalDuration(),
			)
			row.LessonCount = len(m.Lessons)
			row.TotalDurationSeconds = m.TotalDuration()
			row.UpdatedAtUTC = r.now()
			report.ModulesRepaired++
		}
	}

	stats, err := readmodel.Of[model.CourseStats](s, model.CourseStatsCollection).FindByID(ctx, structure.CourseID)
	if err != nil {
		return err
	}
	if stats != nil && (stats.ModulesCount != len(structure.Modules) ||
		stats.LessonsCount != lessons ||
		stats.TotalDurationSeconds != duration) {
		r.log.Warn("course stats drift repaired",
			"course_id", structure.CourseID,
			"modules_count", stats.ModulesCount,
			"lessons_count", stats.LessonsCount,
			"total_duration", stats.TotalDurationSeconds,
		)
		stats.ModulesCount = len(structure.Modules)
		stats.LessonsCount = lessons
		stats.TotalDurationSeconds = duration
		stats.UpdatedAtUTC = r.now()
		report.StatsRepaired++
	}

	n, err := s.SaveChanges(ctx)
	if err != nil {
		return err
	}
	report.Rows += n
	return nil
}

// Loop запускает Run каждые interval до отмены ctx
func (r *Reconciler) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("reconcile failed", "error", err)
			}
		}
	}
}
