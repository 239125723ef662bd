package postgresql

// migrations returns the ordered schema migrations for the orchestration
// engine. updated_at participates in every guarded update: together with
// status it is the optimistic-concurrency token.
func migrations() map[int]string {
	return map[int]string{
		1: `
		CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			arr DOUBLE PRECISION NOT NULL DEFAULT 0,
			health_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			risk_level TEXT NOT NULL DEFAULT 'low',
			renewal_date TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS workflow_executions (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			customer_id TEXT NOT NULL DEFAULT '',
			assigned_user_id TEXT NOT NULL DEFAULT '',
			escalation_user_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			workflow_data JSONB NOT NULL DEFAULT '{}',
			priority_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			priority_factors JSONB,
			snoozed_until TIMESTAMP WITH TIME ZONE,
			snoozed_by TEXT NOT NULL DEFAULT '',
			active_triggers JSONB NOT NULL DEFAULT '[]',
			trigger_history JSONB NOT NULL DEFAULT '[]',
			woken_at TIMESTAMP WITH TIME ZONE,
			review_status TEXT NOT NULL DEFAULT '',
			review_iteration INTEGER NOT NULL DEFAULT 0,
			rejection_history JSONB NOT NULL DEFAULT '[]',
			automation_rule_id TEXT NOT NULL DEFAULT '',
			launch_key TEXT NOT NULL DEFAULT '',
			skip_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
			started_at TIMESTAMP WITH TIME ZONE,
			completed_at TIMESTAMP WITH TIME ZONE,
			skipped_at TIMESTAMP WITH TIME ZONE
		);

		CREATE INDEX IF NOT EXISTS idx_executions_assignee ON workflow_executions (assigned_user_id);
		CREATE INDEX IF NOT EXISTS idx_executions_status ON workflow_executions (status);
		CREATE INDEX IF NOT EXISTS idx_executions_launch ON workflow_executions (automation_rule_id, launch_key);

		CREATE TABLE IF NOT EXISTS automation_rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			target_workflow_type TEXT NOT NULL,
			conditions JSONB NOT NULL DEFAULT '[]',
			logic_operator TEXT NOT NULL DEFAULT '',
			assign_to_user_id TEXT NOT NULL DEFAULT '',
			cron_expression TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_rules_owner ON automation_rules (owner_id);
		CREATE INDEX IF NOT EXISTS idx_rules_active ON automation_rules (is_active);

		CREATE TABLE IF NOT EXISTS rule_schedules (
			id TEXT PRIMARY KEY,
			rule_id TEXT NOT NULL,
			cron_expression TEXT NOT NULL,
			next_due_at TIMESTAMP WITH TIME ZONE NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_schedules_due ON rule_schedules (active, next_due_at);
		`,
	}
}
