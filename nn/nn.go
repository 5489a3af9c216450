// Package nn provides a small dense feed-forward network with explicit
// forward and backward passes, hand-derived gradients, and pluggable
// element-wise activations.
//
// The network is a plain stack of dense layers:
//   - Hidden layers apply a configurable nonlinearity
//   - The output layer is linear; softmax is folded into the loss
//   - Tensors are flat []float32 slices in row-major order
//
// Activations implement the Activation interface. Forward returns the
// activated values together with whatever state the backward pass needs,
// so user-defined nonlinearities plug in exactly like the builtins:
//
//	net := nn.NewClassifier(2, 2, 50, 1, nn.Sigmoid{}, rng)
//	trainer := nn.NewTrainer(net, nn.NewSGD(), 0.5)
//
//	for mb := 0; mb < numMinibatches; mb++ {
//		trainer.TrainMinibatch(features, labels, batchSize)
//		if loss, errRate, ok := nn.TrainingProgress(trainer, mb, 20); ok {
//			fmt.Printf("Minibatch: %d, Loss: %.4f, Error: %.2f\n", mb, loss, errRate)
//		}
//	}
//
// The forward matmul can optionally run on a WebGPU adapter (see EnableGPU);
// activations and the backward pass always run on the host so that
// user-defined activations keep working regardless of the device.
package nn
