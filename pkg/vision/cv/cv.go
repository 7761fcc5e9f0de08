// Package cv 基于 gocv (OpenCV) 实现特征提取、图像读写与匹配结果绘制
//
// 支持以下特征提取算法:
//   - ORB、BRISK、AKAZE (二进制描述子)
//   - SIFT、KAZE (浮点描述子)
//   - SURF (浮点描述子，需要 OpenCV contrib 并以 -tags contrib 构建)
//
// 基本用法:
//
//	tk, err := cv.NewToolkit()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	v, _ := pipeline.LookupVariant("sift")
//	p, err := pipeline.New(tk.Deps(), v)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//	summary, err := p.Run(ctx, "1.jpg", "2.jpg")
package cv
