package answer

import "errors"

var (
	// ErrEntityRepositoryRequired is returned when an entity repository is not provided.
	ErrEntityRepositoryRequired = errors.New("entity repository required")

	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrAssemblerRequired is returned when a context assembler is not provided.
	ErrAssemblerRequired = errors.New("context assembler required")

	// ErrCompleterRequired is returned when a completer is not provided.
	ErrCompleterRequired = errors.New("completer required")

	// ErrDuplicateNode is returned when a plan node id is added twice.
	ErrDuplicateNode = errors.New("duplicate plan node")

	// ErrUnknownDependency is returned when a plan node depends on an id
	// that was never added.
	ErrUnknownDependency = errors.New("unknown plan dependency")

	// ErrGraphCycle is returned when plan dependencies form a cycle.
	ErrGraphCycle = errors.New("plan dependencies form a cycle")

	// ErrEmptyGraph is returned when a plan has no nodes to execute.
	ErrEmptyGraph = errors.New("plan has no nodes")
)
