// Package stepflow is a durable step-execution engine with a
// change-detection and fan-out pipeline on top of it.
//
// Instances of registered workflows run their steps in order; every
// completed step is checkpointed so a crashed or retried instance resumes
// at the first incomplete step.  The bundled story workflows poll weather
// office story pages, detect changes and notify subscribed webhooks.
//
//	srv, _ := stepflow.New(stepflow.WithConfig(cfg))
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	poll, _ := rt.Invoke(ctx, false)
//	status, _ := rt.Wait(ctx, poll.ID)
package stepflow
