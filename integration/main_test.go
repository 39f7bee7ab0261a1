//go:build integration

package integration

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/campaign-engine/integration/runner"
)

var caseFlag = flag.String("case", "", "Name of test case to run (from integration/cases/)")
var errFlag = flag.String("err", "continue", "Error handling mode: 'continue' (run all steps) or 'exit' (stop on first failure)")
var contentFlag = flag.String("content", "", "Override the campaign content file for all test cases")
var keepFlag = flag.Bool("keep", false, "Keep campaigns after each run for inspection")

func TestMain(m *testing.M) {
	fmt.Printf("Running Campaign Engine Integration Tests\n")
	fmt.Printf("   API Base URL: %s\n", apiBaseURL())

	code := m.Run()
	os.Exit(code)
}

func newRunner(t *testing.T, mode runner.ErrorHandlingMode) *runner.Runner {
	t.Helper()
	r := runner.NewRunner(apiBaseURL())
	r.Timeout = time.Duration(getIntEnv("TEST_TIMEOUT_SECONDS", 10)) * time.Second
	r.ErrorHandlingMode = mode
	r.ContentOverride = *contentFlag
	r.KeepCampaigns = *keepFlag
	r.Logger = func(format string, args ...interface{}) {
		fmt.Printf(format+"\n", args...)
	}
	if r.ContentOverride != "" {
		t.Logf("Content override enabled: %s", r.ContentOverride)
	}
	return r
}

func TestIntegrationSuites(t *testing.T) {
	testRunner := newRunner(t, runner.ErrorHandlingContinue)

	testFiles, err := discoverTestFiles("cases")
	if err != nil {
		t.Fatalf("Failed to discover test files: %v", err)
	}
	if len(testFiles) == 0 {
		t.Fatal("No test files found in cases directory")
	}

	// Sequences only regroup other cases, so run plain cases once each
	var jobs []runner.TestJob
	for _, file := range testFiles {
		suite, err := runner.LoadTestSuite(file)
		if err != nil {
			t.Errorf("Failed to load test suite %s: %v", file, err)
			continue
		}
		if suite.IsSequence() {
			continue
		}
		jobs = append(jobs, runner.TestJob{Name: suite.Name, Suite: suite, CaseFile: file})
	}
	if len(jobs) == 0 {
		t.Fatal("No valid test suites loaded")
	}

	t.Logf("Loaded %d test suites", len(jobs))
	failures := runJobs(t, testRunner, jobs)
	if len(failures) > 0 {
		t.Log(buildFailureReport(failures))
		t.Fatalf("Integration tests failed")
	}
	t.Logf("All integration tests passed!")
}

// TestSingleSuite allows running individual test suites for debugging
// Supports multiple cases comma-separated: -case "case1,case2,case3"
func TestSingleSuite(t *testing.T) {
	flag.Parse()

	if *caseFlag == "" {
		t.Skip("Skipping single suite test (use -case flag to run)")
	}
	if *errFlag != "exit" && *errFlag != "continue" {
		t.Fatalf("Invalid -err flag value: %s (must be 'exit' or 'continue')", *errFlag)
	}

	testRunner := newRunner(t, runner.ErrorHandlingMode(*errFlag))

	var jobs []runner.TestJob
	for _, caseName := range strings.Split(*caseFlag, ",") {
		caseName = strings.TrimSpace(caseName)
		if caseName == "" {
			continue
		}
		suiteFile := filepath.Join("cases", caseName)
		if filepath.Ext(suiteFile) == "" {
			suiteFile += ".yaml"
		}
		expanded, err := runner.LoadTestSuiteWithExpansion(suiteFile, "cases")
		if err != nil {
			t.Fatalf("Failed to load test suite %s: %v", suiteFile, err)
		}
		jobs = append(jobs, expanded...)
	}
	if len(jobs) == 0 {
		t.Fatalf("No valid test cases found in -case flag: %s", *caseFlag)
	}

	failures := runJobs(t, testRunner, jobs)
	if len(failures) > 0 {
		t.Log(buildFailureReport(failures))
		t.Fatalf("Test suite(s) had errors")
	}
}

// runJobs runs suites sequentially, logging progress, and returns every
// failed step.
func runJobs(t *testing.T, testRunner *runner.Runner, jobs []runner.TestJob) []failureDetail {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var failures []failureDetail
	passed := 0

	for i, job := range jobs {
		t.Logf("[%d/%d] Starting test suite: %s (%d steps)", i+1, len(jobs), job.Name, len(job.Suite.Steps))

		result, err := testRunner.RunSuite(ctx, job.Suite)
		if err != nil && result.Error == nil {
			result.Error = err
		}
		t.Logf("Campaign ID: %s", result.CampaignID)

		if result.Error != nil && len(result.Results) == 0 {
			failures = append(failures, failureDetail{caseName: job.Name, stepName: "setup", error: result.Error.Error()})
			t.Errorf("[%d/%d] FAILED: Test suite '%s' failed: %v", i+1, len(jobs), job.Name, result.Error)
			continue
		}

		for _, stepResult := range result.Results {
			switch {
			case stepResult.Success && stepResult.IsReset:
				// Reset steps don't count toward pass/fail metrics
				t.Logf("   ↻ %s (%v)", stepResult.StepName, stepResult.Duration)
			case stepResult.Success:
				t.Logf("   ✓ %s (%v)", stepResult.StepName, stepResult.Duration)
			default:
				t.Errorf("   ✗ %s: %v", stepResult.StepName, stepResult.Error)
				failures = append(failures, failureDetail{
					caseName: job.Name,
					stepName: stepResult.StepName,
					error:    stepResult.Error.Error(),
				})
			}
		}

		if result.Error != nil {
			t.Errorf("[%d/%d] FAILED: Test suite '%s' failed: %v", i+1, len(jobs), job.Name, result.Error)
		} else {
			passed++
			t.Logf("[%d/%d] PASSED: Test suite '%s' completed in %v", i+1, len(jobs), job.Name, result.Duration)
		}
		t.Logf("--------------------------------")
	}

	t.Logf("Integration Test Summary:")
	t.Logf("   Passed: %d", passed)
	t.Logf("   Failed: %d", len(jobs)-passed)
	return failures
}

// failureDetail tracks information about a specific step failure
type failureDetail struct {
	caseName string
	stepName string
	error    string
}

// buildFailureReport groups failed steps by case
func buildFailureReport(failures []failureDetail) string {
	var sb strings.Builder

	sb.WriteString("\n========================================\n")
	sb.WriteString("Detailed Failure Report\n")
	sb.WriteString("========================================\n")

	byCase := make(map[string][]failureDetail)
	for _, f := range failures {
		byCase[f.caseName] = append(byCase[f.caseName], f)
	}

	caseNames := make([]string, 0, len(byCase))
	for name := range byCase {
		caseNames = append(caseNames, name)
	}
	sort.Strings(caseNames)

	for _, name := range caseNames {
		fs := byCase[name]
		sb.WriteString(fmt.Sprintf("\n%s (%d step failure(s)):\n", name, len(fs)))
		for _, f := range fs {
			sb.WriteString(fmt.Sprintf("  ✗ %s:\n      %s\n", f.stepName, f.error))
		}
	}
	sb.WriteString("\n========================================\n")
	return sb.String()
}

func discoverTestFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && (strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

func apiBaseURL() string {
	if url := os.Getenv("API_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func getIntEnv(name string, defaultValue int) int {
	str := os.Getenv(name)
	if str == "" {
		return defaultValue
	}

	val, err := strconv.Atoi(str)
	if err != nil {
		return defaultValue
	}

	return val
}
