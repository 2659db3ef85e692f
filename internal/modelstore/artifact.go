package modelstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jayakrishnap100/california-housing-mlops/core/model"
	"github.com/jayakrishnap100/california-housing-mlops/datasets"
	"github.com/jayakrishnap100/california-housing-mlops/internal/housing"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
)

const (
	ArtifactDir      = "model.pkl"
	MLmodelFile      = "MLmodel"
	ModelFile        = "model.gob"
	InputExampleFile = "input_example.json"
	Flavor           = "go_gob"
)

// ColumnSpec describes one named input column.
type ColumnSpec struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// TensorSpec describes an unnamed output tensor. -1 marks a variable dimension.
type TensorSpec struct {
	Type  string `yaml:"type" json:"type"`
	Shape []int  `yaml:"shape" json:"shape"`
}

// Signature is the input/output schema of a saved model.
type Signature struct {
	Inputs  []ColumnSpec `yaml:"inputs" json:"inputs"`
	Outputs []TensorSpec `yaml:"outputs" json:"outputs"`
}

// InferSignature derives the signature from the training table.
func InferSignature(t *datasets.Table) Signature {
	inputs := make([]ColumnSpec, len(t.FeatureNames))
	for i, name := range t.FeatureNames {
		inputs[i] = ColumnSpec{Name: name, Type: "double"}
	}
	return Signature{
		Inputs:  inputs,
		Outputs: []TensorSpec{{Type: "double", Shape: []int{-1}}},
	}
}

// InputExample is a few representative input rows in split orientation.
type InputExample struct {
	Columns []string    `json:"columns"`
	Data    [][]float64 `json:"data"`
}

// NewInputExample takes the first n rows of t.
func NewInputExample(t *datasets.Table, n int) *InputExample {
	head := t.Head(n)
	data := make([][]float64, head.Rows())
	for i := range data {
		data[i] = head.Row(i)
	}
	return &InputExample{Columns: append([]string(nil), t.FeatureNames...), Data: data}
}

// Metadata is what Save records next to the serialized model.
type Metadata struct {
	RunID     string
	Signature Signature
	Example   *InputExample
}

// MLmodel is the descriptor file of a saved model.
type MLmodel struct {
	Flavor           string                 `yaml:"flavor"`
	ModelFile        string                 `yaml:"model_file"`
	UTCTimeCreated   time.Time              `yaml:"utc_time_created"`
	RunID            string                 `yaml:"run_id,omitempty"`
	Params           map[string]interface{} `yaml:"params"`
	FeatureNames     []string               `yaml:"feature_names"`
	Signature        Signature              `yaml:"signature"`
	InputExampleFile string                 `yaml:"input_example,omitempty"`
}

// Save writes the artifact directory dir/model.pkl and returns its path.
func Save(dir string, m *housing.HousePriceModel, meta Metadata) (string, error) {
	if !m.IsFitted() {
		return "", errors.NewNotFittedError("HousePriceModel", "Save")
	}

	artifact := filepath.Join(dir, ArtifactDir)
	if err := os.MkdirAll(artifact, 0o755); err != nil {
		return "", errors.Wrapf(err, "create artifact dir %s", artifact)
	}

	if err := model.SaveModel(m, filepath.Join(artifact, ModelFile)); err != nil {
		return "", err
	}

	desc := MLmodel{
		Flavor:         Flavor,
		ModelFile:      ModelFile,
		UTCTimeCreated: time.Now().UTC().Truncate(time.Second),
		RunID:          meta.RunID,
		Params:         m.GetParams(),
		FeatureNames:   m.FeatureNames(),
		Signature:      meta.Signature,
	}

	if meta.Example != nil {
		data, err := json.Marshal(meta.Example)
		if err != nil {
			return "", errors.Wrap(err, "encode input example")
		}
		if err := os.WriteFile(filepath.Join(artifact, InputExampleFile), data, 0o644); err != nil {
			return "", errors.Wrap(err, "write input example")
		}
		desc.InputExampleFile = InputExampleFile
	}

	data, err := yaml.Marshal(&desc)
	if err != nil {
		return "", errors.Wrap(err, "encode MLmodel")
	}
	if err := os.WriteFile(filepath.Join(artifact, MLmodelFile), data, 0o644); err != nil {
		return "", errors.Wrap(err, "write MLmodel")
	}
	return artifact, nil
}

// artifactPath accepts a version directory or the model.pkl directory itself.
func artifactPath(path string) string {
	if filepath.Base(path) == ArtifactDir {
		return path
	}
	return filepath.Join(path, ArtifactDir)
}

// ReadMLmodel reads the descriptor of the artifact at path.
func ReadMLmodel(path string) (*MLmodel, error) {
	file := filepath.Join(artifactPath(path), MLmodelFile)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.NewDataError(file, err)
	}
	var desc MLmodel
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, errors.NewDataError(file, err)
	}
	return &desc, nil
}

// ReadInputExample reads the saved input example of the artifact at path.
func ReadInputExample(path string) (*InputExample, error) {
	file := filepath.Join(artifactPath(path), InputExampleFile)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.NewDataError(file, err)
	}
	var ex InputExample
	if err := json.Unmarshal(data, &ex); err != nil {
		return nil, errors.NewDataError(file, err)
	}
	return &ex, nil
}

// Load reads the model saved at path, a version directory or its model.pkl.
func Load(path string) (*housing.HousePriceModel, error) {
	desc, err := ReadMLmodel(path)
	if err != nil {
		return nil, err
	}
	if desc.Flavor != Flavor {
		return nil, errors.NewDataError(path, errors.Newf("unsupported model flavor %q", desc.Flavor))
	}

	// model_file names a file inside the artifact directory.
	name := desc.ModelFile
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return nil, errors.NewDataError(path, errors.Newf("model_file %q must be a file name in the artifact directory", name))
	}

	file := filepath.Join(artifactPath(path), name)
	var m housing.HousePriceModel
	if err := model.LoadModel(&m, file); err != nil {
		return nil, errors.NewDataError(file, err)
	}
	if !m.IsFitted() {
		return nil, errors.NewDataError(file, errors.New("artifact holds an unfitted model"))
	}
	return &m, nil
}
