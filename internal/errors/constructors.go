package errors

// Convenience constructors for common error patterns

func ConfigNotFound(path string) *PipelineError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *PipelineError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *PipelineError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

func VersionNotFound(command string) *PipelineError {
	return New(CategoryVersion, SeverityFatal, "no version token found in build tool output").
		WithContext("command", command)
}

func CommandFailed(err error, command string) *PipelineError {
	return Wrap(err, CategoryToolchain, SeverityFatal, "external command failed").
		WithContext("command", command)
}

func SiteDirMissing(path string) *PipelineError {
	return New(CategoryPublish, SeverityFatal, "site directory missing or empty").
		WithContext("path", path)
}

func GitOperation(err error, op string) *PipelineError {
	return Wrap(err, CategoryGit, SeverityFatal, "git operation failed").
		WithContext("operation", op)
}
