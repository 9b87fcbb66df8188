package executor

import (
	"regexp"
	"strings"

	"execoj/internal/execution/model"
)

// Visualization types.
const (
	VisExecutionSteps        = "execution-steps"
	VisComplexityAnalysis    = "complexity-analysis"
	VisQueryExecution        = "query-execution"
	VisDatabaseMetrics       = "database-metrics"
	VisNetworkTraffic        = "network-traffic"
	VisMemoryMap             = "memory-map"
	VisClassDiagram          = "class-diagram"
	VisOOPMetrics            = "oop-metrics"
	VisVulnerabilityAnalysis = "vulnerability-analysis"
	VisSecurityMetrics       = "security-metrics"
	VisCallStack             = "call-stack"
	VisModelPerformance      = "model-performance"
	VisModelArchitecture     = "model-architecture"
	VisBinaryAnalysis        = "binary-analysis"
)

// Visualizer derives category-specific visualizations from a finished run.
type Visualizer interface {
	Visualize(req *model.ExecutionRequest, results []model.TestResult) []model.Visualization
}

// VisualizerFunc adapts a function to Visualizer.
type VisualizerFunc func(req *model.ExecutionRequest, results []model.TestResult) []model.Visualization

func (f VisualizerFunc) Visualize(req *model.ExecutionRequest, results []model.TestResult) []model.Visualization {
	return f(req, results)
}

var visualizers = map[model.Category]VisualizerFunc{
	model.CategoryAlgorithm: visualizeAlgorithm,
	model.CategoryDatabase:  visualizeDatabase,
	model.CategoryNetwork:   visualizeNetwork,
	model.CategoryOS:        visualizeOS,
	model.CategoryOOP:       visualizeOOP,
	model.CategorySecurity:  visualizeSecurity,
	model.CategoryWeb:       visualizeWeb,
	model.CategoryML:        visualizeML,
	model.CategoryBinary:    visualizeBinary,
}

// VisualizerFor returns the built-in visualizer for category.
func VisualizerFor(category model.Category) Visualizer {
	if v, ok := visualizers[category]; ok {
		return v
	}
	return VisualizerFunc(func(*model.ExecutionRequest, []model.TestResult) []model.Visualization { return nil })
}

func visualizeAlgorithm(req *model.ExecutionRequest, results []model.TestResult) []model.Visualization {
	steps := make([]map[string]any, 0, len(results))
	for i, r := range results {
		steps = append(steps, map[string]any{
			"step":       i + 1,
			"testCaseId": r.TestCaseID,
			"passed":     r.Passed,
			"timeMs":     r.TimeMs,
		})
	}
	depth := loopDepth(req.Code, req.Language)
	recursive := recursiveFunctions(req.Code, req.Language)
	return []model.Visualization{
		{Type: VisExecutionSteps, Data: map[string]any{"steps": steps}},
		{Type: VisComplexityAnalysis, Data: map[string]any{
			"loopDepth":          depth,
			"recursiveFunctions": recursive,
			"estimated":          complexityClass(depth, len(recursive) > 0),
		}},
	}
}

var sqlStatements = map[string]*regexp.Regexp{
	"select": regexp.MustCompile(`(?i)\bselect\b`),
	"insert": regexp.MustCompile(`(?i)\binsert\s+into\b`),
	"update": regexp.MustCompile(`(?i)\bupdate\b\s+\w+\s+set\b`),
	"delete": regexp.MustCompile(`(?i)\bdelete\s+from\b`),
	"create": regexp.MustCompile(`(?i)\bcreate\s+(table|index|view)\b`),
	"join":   regexp.MustCompile(`(?i)\bjoin\b`),
	"where":  regexp.MustCompile(`(?i)\bwhere\b`),
	"group":  regexp.MustCompile(`(?i)\bgroup\s+by\b`),
	"order":  regexp.MustCompile(`(?i)\border\s+by\b`),
}

func visualizeDatabase(req *model.ExecutionRequest, results []model.TestResult) []model.Visualization {
	counts := countMatches(req.Code, sqlStatements)
	plan := make([]map[string]any, 0, len(counts))
	for _, k := range sortedKeys(counts) {
		plan = append(plan, map[string]any{"operation": k, "count": counts[k]})
	}
	rows := 0
	var total int64
	for _, r := range results {
		if r.Actual != "" {
			rows += strings.Count(r.Actual, "\n") + 1
		}
		total += r.TimeMs
	}
	return []model.Visualization{
		{Type: VisQueryExecution, Data: map[string]any{"operations": plan}},
		{Type: VisDatabaseMetrics, Data: map[string]any{
			"queries":      len(results),
			"rowsReturned": rows,
			"avgTimeMs":    average(total, len(results)),
		}},
	}
}

var networkAPIs = map[string]*regexp.Regexp{
	"socket":  regexp.MustCompile(`\bsocket\b`),
	"http":    regexp.MustCompile(`(?i)\bhttps?\b|requests\.|urllib|fetch\s*\(`),
	"dial":    regexp.MustCompile(`net\.Dial|\bconnect\s*\(`),
	"listen":  regexp.MustCompile(`\blisten\s*\(|\bbind\s*\(`),
	"dns":     regexp.MustCompile(`gethostbyname|getaddrinfo|LookupHost`),
	"packets": regexp.MustCompile(`\b(send|recv|sendto|recvfrom)\s*\(`),
}

func visualizeNetwork(req *model.ExecutionRequest, results []model.TestResult) []model.Visualization {
	return []model.Visualization{
		{Type: VisNetworkTraffic, Data: map[string]any{
			"apiUsage":       countMatches(req.Code, networkAPIs),
			"networkEnabled": false,
			"exchanges":      exchanges(results),
		}},
	}
}

var memoryAPIs = map[string]*regexp.Regexp{
	"heap":    regexp.MustCompile(`\b(malloc|calloc|realloc|new)\b`),
	"free":    regexp.MustCompile(`\b(free|delete)\b`),
	"mmap":    regexp.MustCompile(`\bmmap\b`),
	"process": regexp.MustCompile(`\b(fork|exec\w*|spawn)\s*\(`),
	"thread":  regexp.MustCompile(`\b(pthread_create|std::thread|threading\.Thread|go\s+func)\b`),
}

func visualizeOS(req *model.ExecutionRequest, results []model.TestResult) []model.Visualization {
	var peak int64
	perTest := make([]map[string]any, 0, len(results))
	for _, r := range results {
		if r.MemoryKB > peak {
			peak = r.MemoryKB
		}
		perTest = append(perTest, map[string]any{"testCaseId": r.TestCaseID, "memoryKb": r.MemoryKB})
	}
	return []model.Visualization{
		{Type: VisMemoryMap, Data: map[string]any{
			"limitMb":  req.Options.MemoryLimitMB,
			"peakKb":   peak,
			"perTest":  perTest,
			"apiUsage": countMatches(req.Code, memoryAPIs),
		}},
	}
}

func visualizeOOP(req *model.ExecutionRequest, _ []model.TestResult) []model.Visualization {
	list := classes(req.Code)
	interfaces := 0
	for _, c := range list {
		interfaces += len(c.Implements)
	}
	return []model.Visualization{
		{Type: VisClassDiagram, Data: map[string]any{"classes": list}},
		{Type: VisOOPMetrics, Data: map[string]any{
			"classCount":       len(list),
			"methodCount":      len(methodDefs.FindAllStringIndex(req.Code, -1)),
			"inheritanceDepth": inheritanceDepth(list),
			"interfaceUses":    interfaces,
		}},
	}
}

type securityRule struct {
	name     string
	severity string
	pattern  *regexp.Regexp
}

var securityRules = []securityRule{
	{"dynamic-eval", "high", regexp.MustCompile(`\beval\s*\(|\bexec\s*\(`)},
	{"shell-command", "high", regexp.MustCompile(`\bsystem\s*\(|os\.system|subprocess\.|popen\s*\(|Runtime\.getRuntime\(\)\.exec`)},
	{"unbounded-copy", "high", regexp.MustCompile(`\b(strcpy|strcat|gets|sprintf)\s*\(`)},
	{"sql-concatenation", "medium", regexp.MustCompile(`(?i)(select|insert|update|delete)\b[^\n]*["']\s*\+|\+\s*["'][^\n]*(where|values)`)},
	{"insecure-deserialization", "medium", regexp.MustCompile(`pickle\.loads|yaml\.load\s*\(|ObjectInputStream`)},
	{"weak-hash", "low", regexp.MustCompile(`(?i)\b(md5|sha1)\b`)},
	{"hardcoded-secret", "low", regexp.MustCompile(`(?i)(password|secret|api_?key)\s*=\s*["'][^"']+["']`)},
}

func visualizeSecurity(req *model.ExecutionRequest, _ []model.TestResult) []model.Visualization {
	var findings []map[string]any
	bySeverity := map[string]int{"high": 0, "medium": 0, "low": 0}
	for i, line := range strings.Split(req.Code, "\n") {
		for _, rule := range securityRules {
			if rule.pattern.MatchString(line) {
				findings = append(findings, map[string]any{
					"rule":     rule.name,
					"severity": rule.severity,
					"line":     i + 1,
				})
				bySeverity[rule.severity]++
			}
		}
	}
	score := 100 - 25*bySeverity["high"] - 10*bySeverity["medium"] - 5*bySeverity["low"]
	if score < 0 {
		score = 0
	}
	return []model.Visualization{
		{Type: VisVulnerabilityAnalysis, Data: map[string]any{"findings": findings}},
		{Type: VisSecurityMetrics, Data: map[string]any{
			"bySeverity": bySeverity,
			"score":      score,
		}},
	}
}

func visualizeWeb(req *model.ExecutionRequest, _ []model.TestResult) []model.Visualization {
	names := functionNames(req.Code)
	frames := make([]map[string]any, 0, len(names))
	for _, name := range names {
		loc := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*\(`).FindStringIndex(req.Code)
		body := functionBody(req.Code, loc[0], req.Language)
		var calls []string
		for _, other := range names {
			if regexp.MustCompile(`\b` + regexp.QuoteMeta(other) + `\s*\(`).MatchString(body) {
				calls = append(calls, other)
			}
		}
		frames = append(frames, map[string]any{"function": name, "calls": calls})
	}
	return []model.Visualization{
		{Type: VisCallStack, Data: map[string]any{"frames": frames}},
	}
}

var mlFrameworks = map[string]*regexp.Regexp{
	"numpy":      regexp.MustCompile(`\bnumpy\b|\bnp\.`),
	"pandas":     regexp.MustCompile(`\bpandas\b|\bpd\.`),
	"sklearn":    regexp.MustCompile(`\bsklearn\b`),
	"torch":      regexp.MustCompile(`\btorch\b`),
	"tensorflow": regexp.MustCompile(`\btensorflow\b|\bkeras\b`),
}

var mlLayers = map[string]*regexp.Regexp{
	"dense":   regexp.MustCompile(`\b(Dense|Linear)\s*\(`),
	"conv":    regexp.MustCompile(`\bConv[123]d\s*\(|\bConv[123]D\s*\(`),
	"recur":   regexp.MustCompile(`\b(LSTM|GRU|RNN)\s*\(`),
	"dropout": regexp.MustCompile(`\bDropout\s*\(`),
	"norm":    regexp.MustCompile(`\bBatchNorm\w*\s*\(|\bBatchNormalization\s*\(`),
}

func visualizeML(req *model.ExecutionRequest, results []model.TestResult) []model.Visualization {
	passed := 0
	var total int64
	for _, r := range results {
		if r.Passed {
			passed++
		}
		total += r.TimeMs
	}
	accuracy := 0.0
	if len(results) > 0 {
		accuracy = float64(passed) / float64(len(results))
	}
	return []model.Visualization{
		{Type: VisModelPerformance, Data: map[string]any{
			"accuracy":    accuracy,
			"testsPassed": passed,
			"testsRun":    len(results),
			"avgTimeMs":   average(total, len(results)),
		}},
		{Type: VisModelArchitecture, Data: map[string]any{
			"frameworks": sortedKeys(countMatches(req.Code, mlFrameworks)),
			"layers":     countMatches(req.Code, mlLayers),
		}},
	}
}

var binaryOps = map[string]*regexp.Regexp{
	"shift":  regexp.MustCompile(`<<|>>`),
	"and":    regexp.MustCompile(`[^&]&[^&=]`),
	"or":     regexp.MustCompile(`[^|]\|[^|=]`),
	"xor":    regexp.MustCompile(`\^`),
	"not":    regexp.MustCompile(`~`),
	"hex":    regexp.MustCompile(`\b0[xX][0-9a-fA-F]+\b`),
	"binary": regexp.MustCompile(`\b0[bB][01]+\b`),
	"struct": regexp.MustCompile(`\bstruct\.(pack|unpack)\b|\bbytes\(|\bbytearray\(`),
}

func visualizeBinary(req *model.ExecutionRequest, results []model.TestResult) []model.Visualization {
	outputs := make([]map[string]any, 0, len(results))
	for _, r := range results {
		if r.Hidden {
			continue
		}
		outputs = append(outputs, map[string]any{
			"testCaseId": r.TestCaseID,
			"bytes":      len(r.Actual),
			"hex":        hexPreview(r.Actual, 32),
		})
	}
	return []model.Visualization{
		{Type: VisBinaryAnalysis, Data: map[string]any{
			"operations": countMatches(req.Code, binaryOps),
			"outputs":    outputs,
		}},
	}
}

func exchanges(results []model.TestResult) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]any{
			"testCaseId":  r.TestCaseID,
			"bytesIn":     len(r.Input),
			"bytesOut":    len(r.Actual),
			"roundTripMs": r.TimeMs,
		})
	}
	return out
}

func average(total int64, n int) int64 {
	if n == 0 {
		return 0
	}
	return total / int64(n)
}

func hexPreview(s string, limit int) string {
	const digits = "0123456789abcdef"
	if len(s) > limit {
		s = s[:limit]
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(digits[s[i]>>4])
		b.WriteByte(digits[s[i]&0x0f])
	}
	return b.String()
}
