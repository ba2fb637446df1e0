package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"evonet/internal/model"
)

const (
	runFile         = "run.json"
	championFile    = "champion.json"
	diagnosticsFile = "generation_diagnostics.json"
	seriesFile      = "fitness_series.csv"
)

// ArtifactFiles lists what WriteRunArtifacts produces inside the run
// directory.
var ArtifactFiles = []string{runFile, championFile, diagnosticsFile, seriesFile}

// WriteRunArtifacts writes a stored run and its champion to baseDir/<run id>
// and returns that directory.
func WriteRunArtifacts(baseDir string, run model.RunRecord, champion model.GenomeRecord) (string, error) {
	if run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}
	if champion.RunID != "" && champion.RunID != run.ID {
		return "", fmt.Errorf("champion %s belongs to run %s, not %s", champion.ID, champion.RunID, run.ID)
	}

	runDir := filepath.Join(baseDir, run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	summary := run
	summary.Diagnostics = nil
	if err := writeJSON(filepath.Join(runDir, runFile), summary); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, championFile), champion); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, diagnosticsFile), run.Diagnostics); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(runDir, run.BestByGeneration); err != nil {
		return "", err
	}
	return runDir, nil
}

// WriteFitnessSeries writes one row per generation, numbered from 0.
func WriteFitnessSeries(runDir string, bestByGeneration []float64) error {
	path := filepath.Join(runDir, seriesFile)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness"}); err != nil {
		return err
	}
	for i, best := range bestByGeneration {
		if err := writer.Write([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(best, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessSeries(runDir string) ([]float64, bool, error) {
	path := filepath.Join(runDir, seriesFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("fitness series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func ReadChampion(runDir string) (model.GenomeRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(runDir, championFile))
	if err != nil {
		if os.IsNotExist(err) {
			return model.GenomeRecord{}, false, nil
		}
		return model.GenomeRecord{}, false, err
	}
	var champion model.GenomeRecord
	if err := json.Unmarshal(data, &champion); err != nil {
		return model.GenomeRecord{}, false, err
	}
	return champion, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
