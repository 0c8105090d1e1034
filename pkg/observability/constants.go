package observability

const (
	AttrStrategy        = "reasoning.strategy"
	AttrComplexity      = "reasoning.complexity"
	AttrSessionID       = "reasoning.session_id"
	AttrProvider        = "llm.provider"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrErrorType       = "error.type"

	SpanThink       = "reasoning.think"
	SpanLLMRequest  = "reasoning.llm_request"
	SpanToTSearch   = "reasoning.tot_search"
	SpanSwarmRun    = "reasoning.swarm_run"
	SpanHybridPhase = "reasoning.hybrid_phase"

	DefaultServiceName  = "cogito"
	DefaultOTLPEndpoint = "localhost:4317"

	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)
