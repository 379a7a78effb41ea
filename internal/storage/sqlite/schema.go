package sqlite

// Timestamps are unix milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS experiments (
	experiment_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT,
	mitigation_strategy TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	model_name TEXT,
	temperature REAL,
	max_tokens INTEGER,
	notes TEXT
);
CREATE INDEX IF NOT EXISTS idx_experiments_strategy ON experiments(mitigation_strategy);

CREATE TABLE IF NOT EXISTS test_prompts (
	prompt_id INTEGER PRIMARY KEY AUTOINCREMENT,
	experiment_id INTEGER NOT NULL,
	prompt_text TEXT NOT NULL,
	prompt_category TEXT,
	intent TEXT,
	expected_hallucination INTEGER,
	vector_type TEXT,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (experiment_id) REFERENCES experiments(experiment_id)
);
CREATE INDEX IF NOT EXISTS idx_prompts_experiment ON test_prompts(experiment_id);

CREATE TABLE IF NOT EXISTS responses (
	response_id INTEGER PRIMARY KEY AUTOINCREMENT,
	prompt_id INTEGER NOT NULL,
	response_text TEXT NOT NULL,
	response_time_ms REAL,
	tokens_used INTEGER,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (prompt_id) REFERENCES test_prompts(prompt_id)
);
CREATE INDEX IF NOT EXISTS idx_responses_prompt ON responses(prompt_id);

CREATE TABLE IF NOT EXISTS hallucinations (
	hallucination_id INTEGER PRIMARY KEY AUTOINCREMENT,
	response_id INTEGER NOT NULL,
	is_hallucination INTEGER NOT NULL,
	hallucination_type TEXT,
	severity TEXT,
	description TEXT,
	evidence TEXT,
	false_claim TEXT,
	annotated_at INTEGER NOT NULL,
	FOREIGN KEY (response_id) REFERENCES responses(response_id)
);
CREATE INDEX IF NOT EXISTS idx_hallucinations_response ON hallucinations(response_id);

CREATE TABLE IF NOT EXISTS rag_context (
	context_id INTEGER PRIMARY KEY AUTOINCREMENT,
	prompt_id INTEGER NOT NULL,
	retrieved_documents TEXT,
	relevance_scores TEXT,
	num_documents INTEGER,
	FOREIGN KEY (prompt_id) REFERENCES test_prompts(prompt_id)
);
CREATE INDEX IF NOT EXISTS idx_rag_context_prompt ON rag_context(prompt_id);
`
