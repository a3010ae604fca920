package metadb

import "archivecore.io/core/internal/domain"

// InsertHookExecution records one hook fire (§3 HookRegistration,
// §4.7).
func (d *DB) InsertHookExecution(e domain.HookExecution) error {
	row := HookExecutionRow{
		HookName:    e.HookName,
		Event:       string(e.Event),
		ObjectKey:   e.ObjectKey,
		Success:     e.Success,
		ExecutionMS: e.ExecutionTime.Milliseconds(),
		Response:    e.Response,
		Error:       e.Error,
		FiredAt:     e.FiredAt,
	}
	return d.gdb.Create(&row).Error
}

// HookStats is the aggregate delivery statistics for §4.7's
// fire/success-rate reporting.
type HookStats struct {
	EventsFired      int64
	HooksExecuted    int64
	HooksFailed      int64
	AvgExecutionMS   float64
	SuccessRate      float64
}

// HookExecutionStats computes aggregate delivery statistics from the
// hooks table.
func (d *DB) HookExecutionStats() (HookStats, error) {
	var total, failed int64
	var avgMS float64
	if err := d.gdb.Model(&HookExecutionRow{}).Count(&total).Error; err != nil {
		return HookStats{}, err
	}
	if err := d.gdb.Model(&HookExecutionRow{}).Where("success = ?", false).Count(&failed).Error; err != nil {
		return HookStats{}, err
	}
	if total > 0 {
		if err := d.gdb.Model(&HookExecutionRow{}).Select("AVG(execution_ms)").Row().Scan(&avgMS); err != nil {
			avgMS = 0
		}
	}
	stats := HookStats{
		EventsFired:    total,
		HooksExecuted:  total,
		HooksFailed:    failed,
		AvgExecutionMS: avgMS,
	}
	if total > 0 {
		stats.SuccessRate = float64(total-failed) / float64(total)
	}
	return stats, nil
}
