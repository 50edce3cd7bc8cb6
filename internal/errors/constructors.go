package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *PipelineError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigInvalid(path string, cause error) *PipelineError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration could not be parsed").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *PipelineError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Pipeline errors

func StageFailed(stage string, cause error) *PipelineError {
	return Wrap(cause, CategoryBuild, SeverityFatal, "stage failed").
		WithContext("stage", stage)
}

func PathMissing(path string, cause error) *PipelineError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "required path does not exist").
		WithContext("path", path)
}

func FileSystemError(operation, path string, cause error) *PipelineError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "filesystem operation failed").
		WithContext("operation", operation).
		WithContext("path", path)
}

// External tool errors

func PipFailed(operation string, cause error) *PipelineError {
	return Wrap(cause, CategoryPython, SeverityFatal, "pip "+operation+" failed").
		WithContext("operation", operation)
}

func SphinxFailed(target string, cause error) *PipelineError {
	return Wrap(cause, CategorySphinx, SeverityFatal, "documentation generator failed").
		WithContext("target", target)
}

// Git errors

func GitCloneError(repo string, cause error) *PipelineError {
	return Wrap(cause, CategoryGit, SeverityFatal, "repository checkout failed").
		WithContext("repository", repo)
}

func GitAuthError(repo string, cause error) *PipelineError {
	return Wrap(cause, CategoryAuth, SeverityFatal, "git authentication failed").
		WithContext("repository", repo)
}

func GitNetworkError(repo string, cause error) *PipelineError {
	return WrapRetryable(cause, CategoryNetwork, SeverityWarning, "git network error").
		WithContext("repository", repo)
}

// Internal errors

func InternalError(message string, cause error) *PipelineError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
