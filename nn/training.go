package nn

import (
	"fmt"
	"math"
)

// Trainer drives minibatch SGD over a network and tracks the loss and
// classification error of the most recent minibatch, so callers can report
// progress without re-evaluating the model.
type Trainer struct {
	Net *Network
	Opt Optimizer

	// LearningRate is applied per minibatch.
	LearningRate float32

	lastLoss    float64
	lastErr     float64
	minibatches int
}

// NewTrainer pairs a network with an optimizer and a per-minibatch learning rate.
func NewTrainer(net *Network, opt Optimizer, learningRate float32) *Trainer {
	return &Trainer{
		Net:          net,
		Opt:          opt,
		LearningRate: learningRate,
	}
}

// TrainMinibatch runs one forward/backward/update cycle on a minibatch of
// one-hot labeled samples. features is [batch * InputDim] and labels is
// [batch * OutputDim], both flat row-major.
func (t *Trainer) TrainMinibatch(features, labels []float32, batch int) error {
	if batch <= 0 {
		return fmt.Errorf("train minibatch: batch size must be positive, got %d", batch)
	}
	if len(labels) != batch*t.Net.OutputDim {
		return fmt.Errorf("train minibatch: label length %d does not match batch %d x output dim %d",
			len(labels), batch, t.Net.OutputDim)
	}

	logits, err := t.Net.Forward(features, batch)
	if err != nil {
		return err
	}

	t.lastLoss = CrossEntropyWithSoftmax(logits, labels, batch)
	t.lastErr = ClassificationError(logits, labels, batch)

	if err := t.Net.Backward(labels, batch); err != nil {
		return err
	}
	t.Opt.Step(t.Net, t.LearningRate)
	t.minibatches++
	return nil
}

// PreviousMinibatchLoss returns the mean loss of the last trained minibatch.
func (t *Trainer) PreviousMinibatchLoss() float64 { return t.lastLoss }

// PreviousMinibatchError returns the classification-error fraction of the
// last trained minibatch.
func (t *Trainer) PreviousMinibatchError() float64 { return t.lastErr }

// Minibatches returns how many minibatches have been trained.
func (t *Trainer) Minibatches() int { return t.minibatches }

// TrainingProgress gates progress reporting to every `frequency` minibatches.
// It returns the previous-minibatch loss and error averages, with ok set when
// minibatch mb falls on the reporting frequency.
func TrainingProgress(t *Trainer, mb, frequency int) (loss, errRate float64, ok bool) {
	if frequency <= 0 || mb%frequency != 0 {
		return 0, 0, false
	}
	return t.PreviousMinibatchLoss(), t.PreviousMinibatchError(), true
}

// CrossEntropyWithSoftmax computes the mean cross-entropy between
// softmax(logits) and the one-hot labels over the minibatch.
func CrossEntropyWithSoftmax(logits, labels []float32, batch int) float64 {
	if batch <= 0 {
		return 0
	}
	classes := len(logits) / batch

	var total float64
	probs := make([]float32, classes)
	for b := 0; b < batch; b++ {
		softmaxRow(logits[b*classes:(b+1)*classes], probs)
		for c := 0; c < classes; c++ {
			if labels[b*classes+c] > 0 {
				p := math.Max(float64(probs[c]), 1e-12)
				total += -float64(labels[b*classes+c]) * math.Log(p)
			}
		}
	}
	return total / float64(batch)
}

// ClassificationError returns the fraction of minibatch samples whose argmax
// prediction disagrees with the one-hot label.
func ClassificationError(logits, labels []float32, batch int) float64 {
	if batch <= 0 {
		return 0
	}
	classes := len(logits) / batch

	wrong := 0
	for b := 0; b < batch; b++ {
		if argmax(logits[b*classes:(b+1)*classes]) != argmax(labels[b*classes:(b+1)*classes]) {
			wrong++
		}
	}
	return float64(wrong) / float64(batch)
}

func argmax(row []float32) int {
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}
