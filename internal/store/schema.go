package store

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS courses (
	id INTEGER PRIMARY KEY,
	code TEXT NOT NULL,
	title TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollments (
	student_id INTEGER NOT NULL,
	course_id INTEGER NOT NULL REFERENCES courses(id),
	PRIMARY KEY (student_id, course_id)
);

CREATE TABLE IF NOT EXISTS quizzes (
	id INTEGER PRIMARY KEY,
	course_id INTEGER NOT NULL REFERENCES courses(id),
	title TEXT NOT NULL,
	total_marks INTEGER NOT NULL DEFAULT 0,
	passing_marks INTEGER NOT NULL DEFAULT 0,
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 1,
	start_date DATETIME,
	end_date DATETIME,
	shuffle_questions INTEGER NOT NULL DEFAULT 0,
	shuffle_options INTEGER NOT NULL DEFAULT 0,
	show_results_immediately INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY,
	quiz_id INTEGER NOT NULL REFERENCES quizzes(id),
	type TEXT NOT NULL,
	text TEXT NOT NULL,
	marks INTEGER,
	order_index INTEGER NOT NULL DEFAULT 0,
	correct_answer TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS options (
	question_id INTEGER NOT NULL REFERENCES questions(id),
	id TEXT NOT NULL,
	text TEXT NOT NULL,
	is_correct INTEGER NOT NULL DEFAULT 0,
	order_index INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (question_id, id)
);

CREATE TABLE IF NOT EXISTS attempts (
	id TEXT PRIMARY KEY,
	quiz_id INTEGER NOT NULL REFERENCES quizzes(id),
	student_id INTEGER NOT NULL,
	attempt_number INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'in_progress',
	started_at DATETIME NOT NULL,
	submitted_at DATETIME,
	time_spent_seconds INTEGER NOT NULL DEFAULT 0,
	score INTEGER NOT NULL DEFAULT 0,
	percentage INTEGER NOT NULL DEFAULT 0,
	UNIQUE (quiz_id, student_id, attempt_number)
);

CREATE INDEX IF NOT EXISTS attempts_status ON attempts(status);

CREATE TABLE IF NOT EXISTS answers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	attempt_id TEXT NOT NULL REFERENCES attempts(id),
	question_id INTEGER NOT NULL,
	selected_option_id TEXT NOT NULL DEFAULT '',
	answer_text TEXT NOT NULL DEFAULT '',
	is_correct INTEGER NOT NULL DEFAULT 0,
	marks_obtained INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS assignments (
	id INTEGER PRIMARY KEY,
	course_id INTEGER NOT NULL REFERENCES courses(id),
	title TEXT NOT NULL,
	max_score INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	assignment_id INTEGER NOT NULL REFERENCES assignments(id),
	student_id INTEGER NOT NULL,
	status TEXT NOT NULL,
	score INTEGER,
	submitted_at DATETIME NOT NULL,
	UNIQUE (assignment_id, student_id)
);

CREATE TABLE IF NOT EXISTS imported_files (
	path TEXT PRIMARY KEY,
	sha256 TEXT NOT NULL,
	imported_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS courses (
	id BIGINT PRIMARY KEY,
	code TEXT NOT NULL,
	title TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollments (
	student_id BIGINT NOT NULL,
	course_id BIGINT NOT NULL REFERENCES courses(id),
	PRIMARY KEY (student_id, course_id)
);

CREATE TABLE IF NOT EXISTS quizzes (
	id BIGINT PRIMARY KEY,
	course_id BIGINT NOT NULL REFERENCES courses(id),
	title TEXT NOT NULL,
	total_marks INTEGER NOT NULL DEFAULT 0,
	passing_marks INTEGER NOT NULL DEFAULT 0,
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 1,
	start_date TIMESTAMPTZ,
	end_date TIMESTAMPTZ,
	shuffle_questions BOOLEAN NOT NULL DEFAULT FALSE,
	shuffle_options BOOLEAN NOT NULL DEFAULT FALSE,
	show_results_immediately BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS questions (
	id BIGINT PRIMARY KEY,
	quiz_id BIGINT NOT NULL REFERENCES quizzes(id),
	type TEXT NOT NULL,
	text TEXT NOT NULL,
	marks INTEGER,
	order_index INTEGER NOT NULL DEFAULT 0,
	correct_answer TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS options (
	question_id BIGINT NOT NULL REFERENCES questions(id),
	id TEXT NOT NULL,
	text TEXT NOT NULL,
	is_correct BOOLEAN NOT NULL DEFAULT FALSE,
	order_index INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (question_id, id)
);

CREATE TABLE IF NOT EXISTS attempts (
	id TEXT PRIMARY KEY,
	quiz_id BIGINT NOT NULL REFERENCES quizzes(id),
	student_id BIGINT NOT NULL,
	attempt_number INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'in_progress',
	started_at TIMESTAMPTZ NOT NULL,
	submitted_at TIMESTAMPTZ,
	time_spent_seconds BIGINT NOT NULL DEFAULT 0,
	score INTEGER NOT NULL DEFAULT 0,
	percentage INTEGER NOT NULL DEFAULT 0,
	UNIQUE (quiz_id, student_id, attempt_number)
);

CREATE INDEX IF NOT EXISTS attempts_status ON attempts(status);

CREATE TABLE IF NOT EXISTS answers (
	id BIGSERIAL PRIMARY KEY,
	attempt_id TEXT NOT NULL REFERENCES attempts(id),
	question_id BIGINT NOT NULL,
	selected_option_id TEXT NOT NULL DEFAULT '',
	answer_text TEXT NOT NULL DEFAULT '',
	is_correct BOOLEAN NOT NULL DEFAULT FALSE,
	marks_obtained INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS assignments (
	id BIGINT PRIMARY KEY,
	course_id BIGINT NOT NULL REFERENCES courses(id),
	title TEXT NOT NULL,
	max_score INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	id BIGSERIAL PRIMARY KEY,
	assignment_id BIGINT NOT NULL REFERENCES assignments(id),
	student_id BIGINT NOT NULL,
	status TEXT NOT NULL,
	score INTEGER,
	submitted_at TIMESTAMPTZ NOT NULL,
	UNIQUE (assignment_id, student_id)
);

CREATE TABLE IF NOT EXISTS imported_files (
	path TEXT PRIMARY KEY,
	sha256 TEXT NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
